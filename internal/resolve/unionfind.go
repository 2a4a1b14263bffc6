package resolve

// GroupID identifies a cluster within a single run. Ids are reassigned from
// scratch every run and carry no meaning across runs; never persist one as a
// durable key.
type GroupID int

// DisjointSet is a union-find arena over element indices [0, n) with path
// compression. Union always keeps the smaller index as root, so the final
// partition and its roots depend only on the order of the input.
type DisjointSet struct {
	parent []int
}

// NewDisjointSet creates n singleton sets.
func NewDisjointSet(n int) *DisjointSet {
	ds := &DisjointSet{parent: make([]int, n)}
	for i := range ds.parent {
		ds.parent[i] = i
	}
	return ds
}

// Len returns the number of elements.
func (ds *DisjointSet) Len() int { return len(ds.parent) }

// Find returns the root of x's set.
func (ds *DisjointSet) Find(x int) int {
	root := x
	for ds.parent[root] != root {
		root = ds.parent[root]
	}
	for ds.parent[x] != root {
		next := ds.parent[x]
		ds.parent[x] = root
		x = next
	}
	return root
}

// Union merges the sets containing a and b. It reports whether a merge
// happened (false when they were already together).
func (ds *DisjointSet) Union(a, b int) bool {
	ra, rb := ds.Find(a), ds.Find(b)
	if ra == rb {
		return false
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	ds.parent[rb] = ra
	return true
}

// Connected reports whether a and b share a set.
func (ds *DisjointSet) Connected(a, b int) bool {
	return ds.Find(a) == ds.Find(b)
}

// Labels assigns a GroupID to every element, numbering roots from 1 in
// order of first appearance when scanning indices ascending.
func (ds *DisjointSet) Labels() []GroupID {
	labels := make([]GroupID, len(ds.parent))
	byRoot := make(map[int]GroupID)
	for i := range ds.parent {
		r := ds.Find(i)
		id, ok := byRoot[r]
		if !ok {
			id = GroupID(len(byRoot) + 1)
			byRoot[r] = id
		}
		labels[i] = id
	}
	return labels
}
