package change

import (
	"go.uber.org/zap"

	"github.com/sells-group/adhs-etl/internal/model"
)

// Input is one month's analysis request. Previous and History may be
// empty: with no previous month every record is new, and with no history
// every address is new.
type Input struct {
	Period   model.Period
	Current  []model.ProviderRecord
	Previous []model.ProviderRecord
	History  *History
}

// Row is one annotated record. Lost rows are synthesized from the previous
// month's record and carry its original attributes re-dated to Period.
type Row struct {
	Record          model.ProviderRecord `json:"record"`
	Status          Status               `json:"status"`
	Lead            LeadType             `json:"lead_type"`
	Lost            bool                 `json:"lost"`
	Reinstated      bool                 `json:"reinstated"`
	MonthsSinceLost int                  `json:"months_since_lost,omitempty"`
}

// Result holds every annotated row: current records in input order followed
// by lost records in previous-month order.
type Result struct {
	Period model.Period
	Rows   []Row
	Counts map[Status]int
}

// Analyze classifies the current month. It never mutates its inputs.
func Analyze(in Input) *Result {
	prevKeys := make(map[model.ProviderKey]bool, len(in.Previous))
	for _, r := range in.Previous {
		prevKeys[r.Key()] = true
	}

	curKeys := make(map[model.ProviderKey]bool, len(in.Current))
	curByAddr := make(map[string][]model.ProviderRecord)
	for _, r := range in.Current {
		curKeys[r.Key()] = true
		curByAddr[r.AddressKey()] = append(curByAddr[r.AddressKey()], r)
	}

	res := &Result{
		Period: in.Period,
		Rows:   make([]Row, 0, len(in.Current)+len(in.Previous)),
		Counts: make(map[Status]int),
	}

	for _, r := range in.Current {
		row := classifyCurrent(r, in, prevKeys)
		res.add(row)
	}

	seenLost := make(map[model.ProviderKey]bool)
	for _, r := range in.Previous {
		k := r.Key()
		if curKeys[k] || seenLost[k] {
			continue
		}
		seenLost[k] = true

		lost := r
		lost.Month = int(in.Period.Month)
		lost.Year = in.Period.Year
		st := classifyLost(r, curByAddr[r.AddressKey()])
		res.add(Row{Record: lost, Status: st, Lead: st.LeadType(), Lost: true})
	}

	zap.L().Debug("change analysis complete",
		zap.String("component", "change.analyzer"),
		zap.String("period", in.Period.String()),
		zap.Int("current", len(in.Current)),
		zap.Int("previous", len(in.Previous)),
		zap.Int("rows", len(res.Rows)),
	)
	return res
}

func classifyCurrent(r model.ProviderRecord, in Input, prevKeys map[model.ProviderKey]bool) Row {
	k := r.Key()
	novel := !in.History.AddressSeenBefore(r.AddressKey(), in.Period)

	var st Status
	row := Row{Record: r}
	switch {
	case prevKeys[k] && novel:
		st = ExistingTypeNewAddress
	case prevKeys[k]:
		st = ExistingTypeExistingAddress
	default:
		if last, ok := in.History.LastSeenBefore(k, in.Period); ok {
			st = ReinstatedExistingAddress
			row.Reinstated = true
			row.MonthsSinceLost = in.Period.MonthsSince(last) - 1
		} else if novel {
			st = NewTypeNewAddress
		} else {
			st = NewTypeExistingAddress
		}
	}
	row.Status = st
	row.Lead = st.LeadType()
	return row
}

// classifyLost decides what is left at a lost license's address: the same
// provider under another license type, other providers, or nobody.
func classifyLost(lost model.ProviderRecord, remaining []model.ProviderRecord) Status {
	if len(remaining) == 0 {
		return LostTypeLostAddress0Remain
	}
	name := lost.RecordKey().ProviderName
	for _, r := range remaining {
		if r.RecordKey().ProviderName == name {
			return LostTypeExistingAddress
		}
	}
	return LostTypeLostAddress1PlusRemain
}

func (r *Result) add(row Row) {
	r.Rows = append(r.Rows, row)
	r.Counts[row.Status]++
}

// LeadCounts tallies rows per lead type.
func (r *Result) LeadCounts() map[LeadType]int {
	out := make(map[LeadType]int)
	for _, row := range r.Rows {
		out[row.Lead]++
	}
	return out
}

// Records returns the annotated records in row order.
func (r *Result) Records() []model.ProviderRecord {
	out := make([]model.ProviderRecord, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.Record
	}
	return out
}
