package family

import "github.com/sells-group/adhs-etl/internal/resolve"

// DefaultThreshold is the per-name similarity and the family-merge overlap
// used when none is configured.
const DefaultThreshold = 85.0

// Overlap scores how much two person sets describe the same people, 0 to
// 100. Each name on one side counts as matched when any name on the other
// side is at least threshold similar. The matched fraction is computed in
// both directions and averaged, so extra people on either side lower the
// score equally: a three-name set against a two-name subset of it scores
// (2/3 + 2/2) / 2 = 83.3.
//
// An empty set on either side scores 0.
func Overlap(a, b PersonSet, threshold float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	fracA := float64(matched(a, b, threshold)) / float64(len(a))
	fracB := float64(matched(b, a, threshold)) / float64(len(b))
	return (fracA + fracB) / 2 * 100
}

// matched counts the names in from that have a counterpart in to.
func matched(from, to PersonSet, threshold float64) int {
	n := 0
	for name := range from {
		if _, ok := to[name]; ok {
			n++
			continue
		}
		for other := range to {
			if resolve.Similarity(name, other) >= threshold {
				n++
				break
			}
		}
	}
	return n
}
