package ledger

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/adhs-etl/internal/change"
	"github.com/sells-group/adhs-etl/internal/model"
)

// Risk levels for RISK_LEVEL.
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// trend scores a group's movement across populated month slots. Scores are
// percentages of month-to-month transitions; volatility is the standard
// deviation of the address counts.
type trend struct {
	stability   float64
	expansion   float64
	contraction float64
	volatility  float64
}

func computeTrend(gv *groupView) trend {
	var counts []float64
	var up, down, flat int
	first := true
	for i, ok := range gv.populated {
		if !ok {
			continue
		}
		counts = append(counts, float64(gv.counts[i]))
		if first {
			first = false
			continue
		}
		switch gv.movement[i] {
		case MovementIncreased:
			up++
		case MovementDecreased:
			down++
		default:
			flat++
		}
	}

	t := trend{stability: 100}
	if n := up + down + flat; n > 0 {
		t.stability = pct(flat, n)
		t.expansion = pct(up, n)
		t.contraction = pct(down, n)
	}
	t.volatility = stddev(counts)
	return t
}

func pct(n, d int) float64 { return float64(n) / float64(d) * 100 }

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// dataQuality is the share of optional attributes present on the record.
func dataQuality(r model.ProviderRecord) float64 {
	present := 0
	for _, ok := range []bool{
		strings.TrimSpace(r.City) != "",
		strings.TrimSpace(r.Zip) != "",
		strings.TrimSpace(r.County) != "",
		r.Capacity != nil,
		r.Latitude != nil,
		r.Longitude != nil,
	} {
		if ok {
			present++
		}
	}
	return pct(present, 6)
}

// longestRun returns the longest streak of consecutive months.
func longestRun(periods []model.Period) int {
	best, run := 0, 0
	for i, p := range periods {
		if i > 0 && p.MonthsSince(periods[i-1]) == 1 {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

func riskLevel(row change.Row, t trend) string {
	switch {
	case row.Status == change.LostTypeLostAddress0Remain || t.contraction >= 50:
		return RiskHigh
	case row.Lost || row.Reinstated || t.contraction > 0:
		return RiskMedium
	default:
		return RiskLow
	}
}

func (b *Builder) renderTracking(set func(col, v string), row change.Row, gv *groupView, hist *change.History, period model.Period) {
	set(ColReinstatedFlag, formatBool(row.Reinstated))
	if row.Reinstated {
		set(ColReinstatedDate, period.Slash())
		set(ColMonthsSinceLost, strconv.Itoa(row.MonthsSinceLost))
	}

	periods := hist.ActivePeriods(row.Record.Key())
	if !row.Lost {
		periods = append(periods, period)
	}
	if len(periods) > 0 {
		set(ColFirstSeen, periods[0].Slash())
		set(ColLastActive, periods[len(periods)-1].Slash())
	}
	set(ColTotalMonthsActive, strconv.Itoa(len(periods)))
	set(ColLongestRun, strconv.Itoa(longestRun(periods)))

	set(ColStabilityScore, score(gv.trend.stability))
	set(ColExpansionScore, score(gv.trend.expansion))
	set(ColContractionScore, score(gv.trend.contraction))
	set(ColVolatilityScore, strconv.FormatFloat(gv.trend.volatility, 'f', 2, 64))
	set(ColMultiCity, formatBool(gv.cities > 1))
	set(ColCityCount, strconv.Itoa(gv.cities))
	set(ColProviderTypeCount, strconv.Itoa(gv.types))

	dq := dataQuality(row.Record)
	set(ColDataQuality, score(dq))
	set(ColRiskLevel, riskLevel(row, gv.trend))

	var notes []string
	if dq < 50 {
		notes = append(notes, "low data quality")
	}
	if row.Reinstated {
		notes = append(notes, fmt.Sprintf("reinstated after %d month(s) lost", row.MonthsSinceLost))
	}
	set(ColManualReview, formatBool(len(notes) > 0))
	set(ColReviewNotes, strings.Join(notes, "; "))
}

func score(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }
