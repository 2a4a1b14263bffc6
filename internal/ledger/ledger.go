package ledger

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adhs-etl/internal/change"
	"github.com/sells-group/adhs-etl/internal/model"
)

// ErrColumnCount is returned when a ledger's header or any row does not
// match the schema's column contract. Nothing is persisted or exported
// once it is returned.
var ErrColumnCount = eris.New("ledger: column count mismatch")

// ErrPeriodOutOfRange is returned when a month outside the schema's range
// is folded into the ledger.
var ErrPeriodOutOfRange = eris.New("ledger: period outside ledger range")

// Ledger is the ordered table of fact rows.
type Ledger struct {
	schema  *Schema
	columns []string
	rows    [][]string
}

// New returns an empty ledger laid out by schema.
func New(schema *Schema) *Ledger {
	return &Ledger{schema: schema, columns: schema.Columns()}
}

// FromTable wraps a previously persisted or exported table. The table is
// validated against schema before it is accepted.
func FromTable(schema *Schema, columns []string, rows [][]string) (*Ledger, error) {
	l := &Ledger{schema: schema, columns: columns, rows: rows}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Schema returns the ledger's layout.
func (l *Ledger) Schema() *Schema { return l.schema }

// Columns returns the header row.
func (l *Ledger) Columns() []string { return l.columns }

// Rows returns the data rows. Callers must not mutate them.
func (l *Ledger) Rows() [][]string { return l.rows }

// Len returns the number of data rows.
func (l *Ledger) Len() int { return len(l.rows) }

// Validate enforces the column contract on the header and every row.
func (l *Ledger) Validate() error {
	want := l.schema.ColumnCount()
	if len(l.columns) != want {
		return eris.Wrapf(ErrColumnCount, "expected %d columns, got %d", want, len(l.columns))
	}
	expected := l.schema.columns
	for i, c := range l.columns {
		if c != expected[i] {
			return eris.Wrapf(ErrColumnCount, "column %d is %q, expected %q", i, c, expected[i])
		}
	}
	for i, row := range l.rows {
		if len(row) != want {
			return eris.Wrapf(ErrColumnCount, "row %d has %d columns, expected %d", i, len(row), want)
		}
	}
	return nil
}

// Get returns the named cell of row i, or "" for an unknown column.
func (l *Ledger) Get(i int, col string) string {
	idx, ok := l.schema.Index(col)
	if !ok || i < 0 || i >= len(l.rows) || idx >= len(l.rows[i]) {
		return ""
	}
	return l.rows[i][idx]
}

// RowPeriod returns the month a row belongs to.
func (l *Ledger) RowPeriod(i int) (model.Period, bool) {
	y, err := strconv.Atoi(l.Get(i, ColYear))
	if err != nil {
		return model.Period{}, false
	}
	m, err := strconv.Atoi(l.Get(i, ColMonth))
	if err != nil || m < 1 || m > 12 {
		return model.Period{}, false
	}
	return model.NewPeriod(y, m), true
}

// RowStatus returns the row's THIS_MONTH_STATUS value.
func (l *Ledger) RowStatus(i int) change.Status {
	return change.Status(l.Get(i, ColStatus))
}

// Record decodes row i back into a provider record.
func (l *Ledger) Record(i int) model.ProviderRecord {
	r := model.ProviderRecord{
		ProviderType: l.Get(i, ColProviderType),
		ProviderName: l.Get(i, ColProvider),
		Address:      l.Get(i, ColAddress),
		City:         l.Get(i, ColCity),
		Zip:          l.Get(i, ColZip),
		County:       l.Get(i, ColCounty),
	}
	if p, ok := l.RowPeriod(i); ok {
		r.Year, r.Month = p.Year, int(p.Month)
	}
	if v, err := strconv.Atoi(strings.TrimSpace(l.Get(i, ColCapacity))); err == nil {
		r.Capacity = &v
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(l.Get(i, ColLatitude)), 64); err == nil {
		r.Latitude = &v
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(l.Get(i, ColLongitude)), 64); err == nil {
		r.Longitude = &v
	}
	return r
}

// Periods lists the distinct months present in the ledger, ascending.
func (l *Ledger) Periods() []model.Period {
	seen := make(map[int]bool)
	for i := range l.rows {
		if p, ok := l.RowPeriod(i); ok {
			seen[p.Index()] = true
		}
	}
	out := make([]model.Period, 0, len(seen))
	for idx := range seen {
		out = append(out, model.PeriodFromIndex(idx))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Before(out[b]) })
	return out
}

// RowCounts returns the number of rows per month.
func (l *Ledger) RowCounts() map[model.Period]int {
	out := make(map[model.Period]int)
	for i := range l.rows {
		if p, ok := l.RowPeriod(i); ok {
			out[p]++
		}
	}
	return out
}

// ActiveRecords returns the licensed (non-lost) records of month p.
func (l *Ledger) ActiveRecords(p model.Period) []model.ProviderRecord {
	var out []model.ProviderRecord
	for i := range l.rows {
		rp, ok := l.RowPeriod(i)
		if !ok || rp != p || l.RowStatus(i).IsLost() {
			continue
		}
		out = append(out, l.Record(i))
	}
	return out
}

// WithoutPeriod returns a copy of the ledger with every row of p removed.
// Reprocessing a month replaces its rows instead of duplicating them.
func (l *Ledger) WithoutPeriod(p model.Period) *Ledger {
	out := &Ledger{schema: l.schema, columns: l.columns, rows: make([][]string, 0, len(l.rows))}
	for i, row := range l.rows {
		if rp, ok := l.RowPeriod(i); ok && rp == p {
			continue
		}
		out.rows = append(out.rows, row)
	}
	return out
}

// History rebuilds the per-license activity index from rows strictly
// before p. Lost rows mark their month as processed but are not activity.
func (l *Ledger) History(before model.Period) *change.History {
	h := change.NewHistory()
	for i := range l.rows {
		p, ok := l.RowPeriod(i)
		if !ok || !p.Before(before) {
			continue
		}
		h.MarkPeriod(p)
		if l.RowStatus(i).IsLost() {
			continue
		}
		h.Observe(l.Record(i))
	}
	return h
}

// PreviousPeriod returns the latest month in the ledger before p.
func (l *Ledger) PreviousPeriod(p model.Period) (model.Period, bool) {
	return l.History(p).LatestBefore(p)
}
