// Package ledger maintains the wide historical ledger: one fact row per
// provider record per processed month, carrying per-month COUNT, TO PREV
// and SUMMARY columns for the record's provider group plus derived
// stability and risk tracking fields.
package ledger

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/adhs-etl/internal/model"
)

// DefaultNotApplicable marks month slots that lie after the processed month.
const DefaultNotApplicable = "N/A"

// Base columns, one per fact row.
const (
	ColMonth             = "MONTH"
	ColYear              = "YEAR"
	ColProviderType      = "PROVIDER_TYPE"
	ColProvider          = "PROVIDER"
	ColAddress           = "ADDRESS"
	ColCity              = "CITY"
	ColZip               = "ZIP"
	ColFullAddress       = "FULL_ADDRESS"
	ColCapacity          = "CAPACITY"
	ColLongitude         = "LONGITUDE"
	ColLatitude          = "LATITUDE"
	ColCounty            = "COUNTY"
	ColGroupIndex        = "PROVIDER_GROUP_INDEX_#"
	ColGroupDBA          = "PROVIDER_GROUP_(DBA_CONCAT)"
	ColGroupAddressCount = "PROVIDER_GROUP_ADDRESS_COUNT"
	ColStatus            = "THIS_MONTH_STATUS"
	ColLeadType          = "LEAD_TYPE"
)

// Tracking columns, appended after the month slots.
const (
	ColReinstatedFlag    = "REINSTATED_FLAG"
	ColReinstatedDate    = "REINSTATED_DATE"
	ColMonthsSinceLost   = "MONTHS_SINCE_LOST"
	ColFirstSeen         = "FIRST_SEEN_MONTH"
	ColLastActive        = "LAST_ACTIVE_MONTH"
	ColTotalMonthsActive = "TOTAL_MONTHS_ACTIVE"
	ColLongestRun        = "LONGEST_CONSECUTIVE_RUN"
	ColStabilityScore    = "STABILITY_SCORE"
	ColExpansionScore    = "EXPANSION_SCORE"
	ColContractionScore  = "CONTRACTION_SCORE"
	ColVolatilityScore   = "VOLATILITY_SCORE"
	ColMultiCity         = "MULTI_CITY_OPERATOR"
	ColCityCount         = "CITY_COUNT"
	ColProviderTypeCount = "PROVIDER_TYPE_COUNT"
	ColDataQuality       = "DATA_QUALITY_SCORE"
	ColRiskLevel         = "RISK_LEVEL"
	ColManualReview      = "MANUAL_REVIEW_FLAG"
	ColReviewNotes       = "REVIEW_NOTES"
)

var baseColumns = []string{
	ColMonth, ColYear, ColProviderType, ColProvider, ColAddress, ColCity, ColZip,
	ColFullAddress, ColCapacity, ColLongitude, ColLatitude, ColCounty,
	ColGroupIndex, ColGroupDBA, ColGroupAddressCount, ColStatus, ColLeadType,
}

var trackingColumns = []string{
	ColReinstatedFlag, ColReinstatedDate, ColMonthsSinceLost,
	ColFirstSeen, ColLastActive, ColTotalMonthsActive, ColLongestRun,
	ColStabilityScore, ColExpansionScore, ColContractionScore, ColVolatilityScore,
	ColMultiCity, ColCityCount, ColProviderTypeCount,
	ColDataQuality, ColRiskLevel, ColManualReview, ColReviewNotes,
}

// Movement values for TO PREV cells.
const (
	MovementIncreased  = "INCREASED"
	MovementDecreased  = "DECREASED"
	MovementNoMovement = "NO_MOVEMENT"
)

// Range is the inclusive span of month slots the ledger tracks.
type Range struct {
	Start model.Period
	End   model.Period
}

// NewRange validates that start is not after end.
func NewRange(start, end model.Period) (Range, error) {
	if start.IsZero() || end.IsZero() {
		return Range{}, eris.New("ledger: range start and end are required")
	}
	if start.After(end) {
		return Range{}, eris.Errorf("ledger: range start %s is after end %s", start, end)
	}
	return Range{Start: start, End: end}, nil
}

// ParseRange parses "YYYY-MM" bounds.
func ParseRange(start, end string) (Range, error) {
	s, err := model.ParsePeriod(start)
	if err != nil {
		return Range{}, eris.Wrap(err, "ledger: range start")
	}
	e, err := model.ParsePeriod(end)
	if err != nil {
		return Range{}, eris.Wrap(err, "ledger: range end")
	}
	return NewRange(s, e)
}

// Len returns the number of month slots.
func (r Range) Len() int { return r.End.MonthsSince(r.Start) + 1 }

// Contains reports whether p is one of the slots.
func (r Range) Contains(p model.Period) bool {
	return !p.Before(r.Start) && !p.After(r.End)
}

// Months lists every slot, ascending.
func (r Range) Months() []model.Period {
	out := make([]model.Period, 0, r.Len())
	for p := r.Start; !p.After(r.End); p = p.Add(1) {
		out = append(out, p)
	}
	return out
}

// CountColumn names the COUNT slot for p, e.g. "9.22 COUNT".
func CountColumn(p model.Period) string { return p.Label() + " COUNT" }

// ToPrevColumn names the TO PREV slot for p.
func ToPrevColumn(p model.Period) string { return p.Label() + " TO PREV" }

// SummaryColumn names the SUMMARY slot for p.
func SummaryColumn(p model.Period) string { return p.Label() + " SUMMARY" }

// ExpectedColumnCount is the column contract for a range: the base
// columns, three slots per month, and the tracking columns. The default
// Sep-2022 through Dec-2025 range gives 17 + 120 + 18 = 155.
func ExpectedColumnCount(r Range) int {
	return len(baseColumns) + 3*r.Len() + len(trackingColumns)
}

// Schema is the ordered column layout for one range.
type Schema struct {
	rng     Range
	na      string
	columns []string
	index   map[string]int
}

// NewSchema lays out the columns for rng: base columns, all COUNT slots,
// all TO PREV slots, all SUMMARY slots, then tracking columns. An empty na
// uses DefaultNotApplicable.
func NewSchema(rng Range, na string) *Schema {
	if na == "" {
		na = DefaultNotApplicable
	}
	months := rng.Months()
	cols := make([]string, 0, ExpectedColumnCount(rng))
	cols = append(cols, baseColumns...)
	for _, p := range months {
		cols = append(cols, CountColumn(p))
	}
	for _, p := range months {
		cols = append(cols, ToPrevColumn(p))
	}
	for _, p := range months {
		cols = append(cols, SummaryColumn(p))
	}
	cols = append(cols, trackingColumns...)

	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c] = i
	}
	return &Schema{rng: rng, na: na, columns: cols, index: idx}
}

// Range returns the schema's month range.
func (s *Schema) Range() Range { return s.rng }

// NotApplicable returns the sentinel for future month slots.
func (s *Schema) NotApplicable() string { return s.na }

// Columns returns a copy of the ordered column names.
func (s *Schema) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// ColumnCount returns the contracted column count.
func (s *Schema) ColumnCount() int { return ExpectedColumnCount(s.rng) }

// Index returns the position of col.
func (s *Schema) Index(col string) (int, bool) {
	i, ok := s.index[col]
	return i, ok
}

func (s *Schema) mustIndex(col string) int {
	i, ok := s.index[col]
	if !ok {
		panic("ledger: unknown column " + col)
	}
	return i
}
