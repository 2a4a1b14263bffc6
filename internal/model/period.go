package model

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// Period is a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod builds a Period from a year and a 1-based month, normalizing
// out-of-range months (month 13 of 2024 is January 2025).
func NewPeriod(year, month int) Period {
	return PeriodFromIndex(year*12 + month - 1)
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, eris.Wrapf(err, "model: parse period %q (want YYYY-MM)", s)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// PeriodFromIndex is the inverse of Index.
func PeriodFromIndex(i int) Period {
	y := i / 12
	m := i % 12
	if m < 0 {
		m += 12
		y--
	}
	return Period{Year: y, Month: time.Month(m + 1)}
}

// Index returns a month counter where consecutive months differ by one.
func (p Period) Index() int {
	return p.Year*12 + int(p.Month) - 1
}

// IsZero reports whether p is unset.
func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

// Before reports whether p is strictly earlier than o.
func (p Period) Before(o Period) bool { return p.Index() < o.Index() }

// After reports whether p is strictly later than o.
func (p Period) After(o Period) bool { return p.Index() > o.Index() }

// Add returns the period n months later (or earlier for negative n).
func (p Period) Add(n int) Period { return PeriodFromIndex(p.Index() + n) }

// MonthsSince returns the number of months from o to p.
func (p Period) MonthsSince(o Period) int { return p.Index() - o.Index() }

// String returns "YYYY-MM".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Label returns the short spreadsheet label "M.YY", e.g. "9.22".
func (p Period) Label() string {
	return fmt.Sprintf("%d.%02d", int(p.Month), p.Year%100)
}

// Slash returns "MM/YYYY".
func (p Period) Slash() string {
	return fmt.Sprintf("%02d/%04d", int(p.Month), p.Year)
}
