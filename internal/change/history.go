package change

import (
	"sort"

	"github.com/sells-group/adhs-etl/internal/model"
)

// History indexes every month in which each license was active and the
// first month each address appeared. Lost rows are never observed here: a
// license is active in a month only if it was licensed that month.
type History struct {
	keyPeriods    map[model.ProviderKey]map[int]bool
	addrFirstSeen map[string]int
	periods       map[int]bool
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{
		keyPeriods:    make(map[model.ProviderKey]map[int]bool),
		addrFirstSeen: make(map[string]int),
		periods:       make(map[int]bool),
	}
}

// Observe records r as active in its own month.
func (h *History) Observe(r model.ProviderRecord) {
	idx := r.Period().Index()
	k := r.Key()
	if h.keyPeriods[k] == nil {
		h.keyPeriods[k] = make(map[int]bool)
	}
	h.keyPeriods[k][idx] = true

	addr := r.AddressKey()
	if first, ok := h.addrFirstSeen[addr]; !ok || idx < first {
		h.addrFirstSeen[addr] = idx
	}
	h.periods[idx] = true
}

// MarkPeriod records that p was processed even if it had no active rows.
func (h *History) MarkPeriod(p model.Period) {
	h.periods[p.Index()] = true
}

// Empty reports whether nothing has been observed.
func (h *History) Empty() bool {
	return h == nil || len(h.periods) == 0
}

// AddressSeenBefore reports whether addr was occupied in any month before p.
func (h *History) AddressSeenBefore(addr string, p model.Period) bool {
	if h == nil {
		return false
	}
	first, ok := h.addrFirstSeen[addr]
	return ok && first < p.Index()
}

// LastSeenBefore returns the latest month before p in which k was active.
func (h *History) LastSeenBefore(k model.ProviderKey, p model.Period) (model.Period, bool) {
	if h == nil {
		return model.Period{}, false
	}
	best, found := 0, false
	for idx := range h.keyPeriods[k] {
		if idx < p.Index() && (!found || idx > best) {
			best, found = idx, true
		}
	}
	if !found {
		return model.Period{}, false
	}
	return model.PeriodFromIndex(best), true
}

// ActivePeriods returns the months in which k was active, ascending.
func (h *History) ActivePeriods(k model.ProviderKey) []model.Period {
	if h == nil {
		return nil
	}
	idxs := make([]int, 0, len(h.keyPeriods[k]))
	for idx := range h.keyPeriods[k] {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	out := make([]model.Period, len(idxs))
	for i, idx := range idxs {
		out[i] = model.PeriodFromIndex(idx)
	}
	return out
}

// Periods returns every processed month, ascending.
func (h *History) Periods() []model.Period {
	if h == nil {
		return nil
	}
	idxs := make([]int, 0, len(h.periods))
	for idx := range h.periods {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	out := make([]model.Period, len(idxs))
	for i, idx := range idxs {
		out[i] = model.PeriodFromIndex(idx)
	}
	return out
}

// LatestBefore returns the most recent processed month before p.
func (h *History) LatestBefore(p model.Period) (model.Period, bool) {
	var (
		best  model.Period
		found bool
	)
	for _, q := range h.Periods() {
		if q.Before(p) {
			best, found = q, true
		}
	}
	return best, found
}
