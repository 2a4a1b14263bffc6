// Package provider clusters (provider name, address) pairs from one monthly
// batch into provider groups: variants of the same operating entity.
package provider

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/adhs-etl/internal/model"
	"github.com/sells-group/adhs-etl/internal/resolve"
)

// Options tunes the grouping passes.
type Options struct {
	// NameThreshold is the minimum Similarity between base names for a
	// fuzzy merge.
	NameThreshold float64 `yaml:"name_threshold" mapstructure:"name_threshold"`
	// SubstringMin is the shared raw-name run length that forces a merge.
	SubstringMin int `yaml:"substring_min" mapstructure:"substring_min"`
	// AddressPrefix is the number of leading address characters that must
	// match for an address merge.
	AddressPrefix int `yaml:"address_prefix" mapstructure:"address_prefix"`
	// Window is how many sorted neighbours each pair is fuzzy-compared
	// with. Zero compares every pair.
	Window int `yaml:"window" mapstructure:"window"`
	// MaxClusterSize bounds how many members of one cluster take part in
	// the fuzzy pass. A cluster with more distinct names than this is
	// represented by one member per base name. Zero disables the cap.
	MaxClusterSize int `yaml:"max_cluster_size" mapstructure:"max_cluster_size"`
}

// DefaultOptions returns the production thresholds.
func DefaultOptions() Options {
	return Options{
		NameThreshold:  85,
		SubstringMin:   20,
		AddressPrefix:  20,
		Window:         30,
		MaxClusterSize: 25,
	}
}

// Stats counts the work done by one Group call.
type Stats struct {
	UniquePairs   int `json:"unique_pairs"`
	NameMerges    int `json:"name_merges"`
	AddressMerges int `json:"address_merges"`
	FuzzyCompared int `json:"fuzzy_compared"`
	FuzzyMerges   int `json:"fuzzy_merges"`
	SkippedByCap  int `json:"skipped_by_cap"`
	Groups        int `json:"groups"`
}

// Assignment maps every grouping pair of a batch to its run-local group.
type Assignment struct {
	Groups  map[model.RecordKey]resolve.GroupID
	Members map[resolve.GroupID][]model.RecordKey
	Stats   Stats
}

// Lookup returns the group of r, or 0 when r was not part of the batch.
func (a *Assignment) Lookup(r model.ProviderRecord) resolve.GroupID {
	return a.Groups[r.RecordKey()]
}

// Assign returns the group of every record, in input order.
func (a *Assignment) Assign(records []model.ProviderRecord) []resolve.GroupID {
	out := make([]resolve.GroupID, len(records))
	for i, r := range records {
		out[i] = a.Lookup(r)
	}
	return out
}

// Grouper assigns provider groups with union-find over exact base-name,
// address-prefix and fuzzy-name joins.
type Grouper struct {
	opts Options
}

// NewGrouper creates a Grouper. Zero thresholds fall back to defaults.
func NewGrouper(opts Options) *Grouper {
	def := DefaultOptions()
	if opts.NameThreshold <= 0 {
		opts.NameThreshold = def.NameThreshold
	}
	if opts.SubstringMin <= 0 {
		opts.SubstringMin = def.SubstringMin
	}
	if opts.AddressPrefix <= 0 {
		opts.AddressPrefix = def.AddressPrefix
	}
	return &Grouper{opts: opts}
}

type pair struct {
	key     model.RecordKey
	base    string
	prefix  string
	reverse string
}

// Group clusters the batch. It never fails: pairs whose name and address
// are both empty end up as singletons.
func (g *Grouper) Group(records []model.ProviderRecord) *Assignment {
	log := zap.L().With(zap.String("component", "provider.grouper"))

	pairs := uniquePairs(records, g.opts.AddressPrefix)
	ds := resolve.NewDisjointSet(len(pairs))
	stats := Stats{UniquePairs: len(pairs)}

	// Exact base name.
	byBase := make(map[string]int)
	for i, p := range pairs {
		if p.base == "" {
			continue
		}
		if first, ok := byBase[p.base]; ok {
			if ds.Union(first, i) {
				stats.NameMerges++
			}
			continue
		}
		byBase[p.base] = i
	}

	// Address prefix.
	byPrefix := make(map[string]int)
	for i, p := range pairs {
		if p.prefix == "" {
			continue
		}
		if first, ok := byPrefix[p.prefix]; ok {
			if ds.Union(first, i) {
				stats.AddressMerges++
			}
			continue
		}
		byPrefix[p.prefix] = i
	}

	// Fuzzy names over two sorted-neighbourhood orders: by base name and by
	// reversed base name, so variants that differ in their first or last
	// characters still land near each other.
	g.fuzzyPass(pairs, ds, &stats, func(p pair) string { return p.base })
	g.fuzzyPass(pairs, ds, &stats, func(p pair) string { return p.reverse })

	labels := ds.Labels()
	a := &Assignment{
		Groups:  make(map[model.RecordKey]resolve.GroupID, len(pairs)),
		Members: make(map[resolve.GroupID][]model.RecordKey),
	}
	for i, p := range pairs {
		a.Groups[p.key] = labels[i]
		a.Members[labels[i]] = append(a.Members[labels[i]], p.key)
	}
	stats.Groups = len(a.Members)
	a.Stats = stats

	log.Debug("provider groups assigned",
		zap.Int("pairs", stats.UniquePairs),
		zap.Int("groups", stats.Groups),
		zap.Int("name_merges", stats.NameMerges),
		zap.Int("address_merges", stats.AddressMerges),
		zap.Int("fuzzy_merges", stats.FuzzyMerges),
		zap.Int("fuzzy_compared", stats.FuzzyCompared),
		zap.Int("skipped_by_cap", stats.SkippedByCap),
	)
	return a
}

func (g *Grouper) fuzzyPass(pairs []pair, ds *resolve.DisjointSet, stats *Stats, sortKey func(pair) string) {
	order := g.fuzzyMembers(pairs, ds, stats)
	sort.SliceStable(order, func(x, y int) bool {
		return sortKey(pairs[order[x]]) < sortKey(pairs[order[y]])
	})

	window := g.opts.Window
	if window <= 0 || window > len(order) {
		window = len(order)
	}

	for x := range order {
		i := order[x]
		for y := x + 1; y < len(order) && y <= x+window; y++ {
			j := order[y]
			if ds.Connected(i, j) {
				continue
			}
			stats.FuzzyCompared++
			if g.namesMatch(pairs[i], pairs[j]) && ds.Union(i, j) {
				stats.FuzzyMerges++
			}
		}
	}
}

type clusterName struct {
	root int
	name string
}

// fuzzyMembers picks the pairs that represent their cluster in a fuzzy
// pass. A name match depends only on the raw provider name, so members of
// one cluster that share it are interchangeable and only the first is kept.
// Clusters that still have more than MaxClusterSize names keep one member
// per base name.
func (g *Grouper) fuzzyMembers(pairs []pair, ds *resolve.DisjointSet, stats *Stats) []int {
	seen := make(map[clusterName]bool, len(pairs))
	names := make(map[int]int)
	order := make([]int, 0, len(pairs))
	for i, p := range pairs {
		if p.base == "" && p.key.ProviderName == "" {
			continue
		}
		k := clusterName{root: ds.Find(i), name: p.key.ProviderName}
		if seen[k] {
			continue
		}
		seen[k] = true
		names[k.root]++
		order = append(order, i)
	}
	if g.opts.MaxClusterSize <= 0 {
		return order
	}

	bases := make(map[clusterName]bool)
	kept := make([]int, 0, len(order))
	for _, i := range order {
		root := ds.Find(i)
		if names[root] > g.opts.MaxClusterSize {
			k := clusterName{root: root, name: pairs[i].base}
			if bases[k] {
				stats.SkippedByCap++
				continue
			}
			bases[k] = true
		}
		kept = append(kept, i)
	}
	return kept
}

func (g *Grouper) namesMatch(a, b pair) bool {
	if a.base != "" && b.base != "" && resolve.Similarity(a.base, b.base) >= g.opts.NameThreshold {
		return true
	}
	return resolve.LongestCommonSubstring(a.key.ProviderName, b.key.ProviderName) >= g.opts.SubstringMin
}

func uniquePairs(records []model.ProviderRecord, prefixLen int) []pair {
	seen := make(map[model.RecordKey]bool, len(records))
	pairs := make([]pair, 0, len(records))
	for _, r := range records {
		k := r.RecordKey()
		if seen[k] {
			continue
		}
		seen[k] = true
		base := resolve.BaseName(k.ProviderName)
		pairs = append(pairs, pair{
			key:     k,
			base:    base,
			prefix:  resolve.AddressPrefix(k.Address, prefixLen),
			reverse: reverseString(base),
		})
	}
	return pairs
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
