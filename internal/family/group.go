package family

import (
	"go.uber.org/zap"

	"github.com/sells-group/adhs-etl/internal/resolve"
)

// Grouper assigns entity families with union-find over person-set overlap.
type Grouper struct {
	threshold float64
}

// NewGrouper creates a Grouper. A non-positive threshold uses
// DefaultThreshold.
func NewGrouper(threshold float64) *Grouper {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Grouper{threshold: threshold}
}

// Threshold returns the configured merge threshold.
func (g *Grouper) Threshold() float64 { return g.threshold }

// Assign returns one family id per record, in input order. Two records are
// joined when both name at least one individual and their Overlap reaches
// the threshold; records with no captured individuals always stay alone.
// Every pair of non-empty records is compared, which is fine for the
// few-thousand-row Ecorp batches this runs over.
func (g *Grouper) Assign(records []CorporateRecord) []resolve.GroupID {
	sets := make([]PersonSet, len(records))
	nonEmpty := make([]int, 0, len(records))
	for i, r := range records {
		sets[i] = Extract(r)
		if len(sets[i]) > 0 {
			nonEmpty = append(nonEmpty, i)
		}
	}

	ds := resolve.NewDisjointSet(len(records))
	merges := 0
	for x, i := range nonEmpty {
		for _, j := range nonEmpty[x+1:] {
			if ds.Connected(i, j) {
				continue
			}
			if Overlap(sets[i], sets[j], g.threshold) >= g.threshold && ds.Union(i, j) {
				merges++
			}
		}
	}

	labels := ds.Labels()
	zap.L().Debug("entity families assigned",
		zap.String("component", "family.grouper"),
		zap.Int("records", len(records)),
		zap.Int("with_people", len(nonEmpty)),
		zap.Int("merges", merges),
	)
	return labels
}
