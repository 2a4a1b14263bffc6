package resolve

import (
	"github.com/xrash/smetrics"
)

// Similarity scores two strings from 0 to 100 using the normalized indel
// ratio: 2*M / (len(a)+len(b)) where M is the number of matching
// characters, the same figure a sequence-matcher ratio reports. The
// distance is computed with Wagner-Fischer where a substitution costs two
// (one delete plus one insert), which makes the score symmetric.
//
// Either side empty scores 0: an absent name never counts as a match.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	total := len(a) + len(b)
	dist := smetrics.WagnerFischer(a, b, 1, 1, 2)
	return float64(total-dist) / float64(total) * 100
}

// LongestCommonSubstring returns the length in bytes of the longest
// contiguous run shared by a and b.
func LongestCommonSubstring(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return best
}
