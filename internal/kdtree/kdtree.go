// Package kdtree implements a balanced k-d tree over fixed-length feature
// vectors with bounded k-nearest-neighbor search.
//
// Nodes live in a flat arena and refer to their children by index, so a
// built tree holds no pointers into itself and can be shared read-only
// across goroutines once Build returns.
package kdtree

import (
	"sort"
)

const none = -1

type node struct {
	point       int32 // index into Tree.points
	dim         int32
	left, right int32
}

// Tree is an immutable k-d tree. The zero value is an empty tree.
type Tree struct {
	nodes  []node
	points [][]float64
	dims   int
	root   int32
}

// Neighbor is one search result.
type Neighbor struct {
	// Index is the point's position in the slice passed to Build.
	Index int
	// Dist2 is the squared Euclidean distance to the query.
	Dist2 float64
}

// Build constructs a tree over points. All points must have the same
// length. The slice headers are retained but never modified; callers
// must not mutate the vectors afterwards.
func Build(points [][]float64) *Tree {
	t := &Tree{points: points, root: none}
	if len(points) == 0 {
		return t
	}
	t.dims = len(points[0])
	t.nodes = make([]node, 0, len(points))

	order := make([]int32, len(points))
	for i := range order {
		order[i] = int32(i)
	}
	t.root = t.build(order, 0)
	return t
}

func (t *Tree) build(order []int32, depth int) int32 {
	if len(order) == 0 {
		return none
	}
	dim := 0
	if t.dims > 0 {
		dim = depth % t.dims
	}
	if len(order) > 1 {
		sort.Slice(order, func(a, b int) bool {
			pa, pb := t.points[order[a]][dim], t.points[order[b]][dim]
			if pa != pb {
				return pa < pb
			}
			return order[a] < order[b]
		})
	}
	median := len(order) / 2

	id := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{point: order[median], dim: int32(dim), left: none, right: none})
	left := t.build(order[:median], depth+1)
	right := t.build(order[median+1:], depth+1)
	t.nodes[id].left = left
	t.nodes[id].right = right
	return id
}

// Len returns the number of indexed points.
func (t *Tree) Len() int { return len(t.points) }

// Dims returns the feature dimension.
func (t *Tree) Dims() int { return t.dims }

// Point returns the feature vector stored at index i.
func (t *Tree) Point(i int) []float64 { return t.points[i] }

// Nearest returns up to k points closest to q in ascending distance.
// Equal distances are ordered by insertion index. An empty tree or k <= 0
// yields an empty result.
func (t *Tree) Nearest(q []float64, k int) []Neighbor {
	return t.NearestBudget(q, k, 0)
}

// NearestBudget is Nearest with a cap on visited nodes. Once maxVisits
// nodes have been examined the best results found so far are returned,
// which makes the search approximate. maxVisits <= 0 disables the cap.
func (t *Tree) NearestBudget(q []float64, k, maxVisits int) []Neighbor {
	if t == nil || t.root == none || k <= 0 {
		return []Neighbor{}
	}
	s := search{
		t:      t,
		q:      q,
		k:      k,
		budget: maxVisits,
		best:   make([]Neighbor, 0, k+1),
	}
	s.visit(t.root)
	return s.best
}

type search struct {
	t      *Tree
	q      []float64
	k      int
	budget int
	visits int
	best   []Neighbor
}

func (s *search) exhausted() bool {
	return s.budget > 0 && s.visits >= s.budget
}

func (s *search) visit(id int32) {
	if id == none || s.exhausted() {
		return
	}
	s.visits++
	n := &s.t.nodes[id]
	p := s.t.points[n.point]
	s.offer(int(n.point), dist2(s.q, p))

	diff := s.q[n.dim] - p[n.dim]
	near, far := n.left, n.right
	if diff >= 0 {
		near, far = n.right, n.left
	}
	s.visit(near)
	if len(s.best) < s.k || diff*diff <= s.best[len(s.best)-1].Dist2 {
		s.visit(far)
	}
}

// offer inserts a candidate into the sorted k-best list.
func (s *search) offer(idx int, d float64) {
	if len(s.best) == s.k && !less(d, idx, s.best[s.k-1]) {
		return
	}
	pos := sort.Search(len(s.best), func(i int) bool { return less(d, idx, s.best[i]) })
	s.best = append(s.best, Neighbor{})
	copy(s.best[pos+1:], s.best[pos:])
	s.best[pos] = Neighbor{Index: idx, Dist2: d}
	if len(s.best) > s.k {
		s.best = s.best[:s.k]
	}
}

func less(d float64, idx int, n Neighbor) bool {
	if d != n.Dist2 {
		return d < n.Dist2
	}
	return idx < n.Index
}

func dist2(a, b []float64) float64 {
	var d float64
	for i := range a {
		v := a[i] - b[i]
		d += v * v
	}
	return d
}
