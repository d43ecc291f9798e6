package sim

import (
	"iter"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultMaxDepth bounds tree depth when NewQuadtree is used directly
const DefaultMaxDepth = 16

const noChildren int32 = -1

// Item is what the index stores per body: a handle and the position it had
// when the index was built.
type Item struct {
	ID  BodyID
	Pos r2.Vec
}

// node is a quadtree node. A leaf has children == noChildren and owns items;
// an internal node has four consecutive children starting at children and no items.
type node struct {
	bounds   Rect
	children int32
	depth    int32
	items    []Item
}

// Quadtree is a point quadtree over a fixed rectangle. Nodes live in a single
// arena and refer to their children by index, so a rebuild reuses the memory
// of the previous one.
type Quadtree struct {
	bounds   Rect
	capacity int
	maxDepth int

	nodes []node

	// Item buffers of discarded nodes, handed to new leaves
	spare [][]Item

	count    int
	rejected int
	depth    int
}

// NewQuadtree creates an empty leaf covering bounds
func NewQuadtree(bounds Rect, capacity int) *Quadtree {
	if capacity < 1 {
		capacity = 1
	}
	q := &Quadtree{
		capacity: capacity,
		maxDepth: DefaultMaxDepth,
		nodes:    make([]node, 0, 64),
	}
	q.Reset(bounds)
	return q
}

// SetMaxDepth changes the depth at which leaves stop splitting.
// Takes effect for subsequent insertions.
func (q *Quadtree) SetMaxDepth(depth int) {
	if depth < 0 {
		depth = 0
	}
	q.maxDepth = depth
}

// Reset discards every node and leaves a single empty leaf over bounds
func (q *Quadtree) Reset(bounds Rect) {
	for i := range q.nodes {
		if q.nodes[i].items != nil {
			q.spare = append(q.spare, q.nodes[i].items[:0])
			q.nodes[i].items = nil
		}
	}
	q.nodes = q.nodes[:0]
	q.bounds = bounds
	q.count = 0
	q.rejected = 0
	q.depth = 0
	q.nodes = append(q.nodes, q.newNode(bounds, 0))
}

// Rebuild resets the tree and inserts every (id, position) pair from items
func (q *Quadtree) Rebuild(items iter.Seq2[BodyID, r2.Vec]) {
	q.Reset(q.bounds)
	for id, pos := range items {
		q.Insert(id, pos)
	}
}

// Insert adds a body at pos. It returns false, leaving the tree unchanged
// apart from the rejection counter, when pos lies outside the tree bounds.
func (q *Quadtree) Insert(id BodyID, pos r2.Vec) bool {
	if !q.bounds.Contains(pos) {
		q.rejected++
		return false
	}
	q.insertAt(0, Item{ID: id, Pos: pos})
	q.count++
	return true
}

// insertAt descends from node n to the leaf owning it.Pos, splitting full
// leaves on the way
func (q *Quadtree) insertAt(n int32, it Item) {
	for {
		nd := &q.nodes[n]
		if nd.children != noChildren {
			n = nd.children + quadrant(nd.bounds.Center(), it.Pos)
			continue
		}
		if len(nd.items) < q.capacity || int(nd.depth) >= q.maxDepth {
			nd.items = append(nd.items, it)
			return
		}
		q.split(n)
	}
}

// quadrant maps p to a child index using half-open halves: a point on the
// vertical midline is right, a point on the horizontal midline is top.
//
//	0 top-left   3 top-right
//	1 bottom-left 2 bottom-right
func quadrant(mid, p r2.Vec) int32 {
	top := p.Y >= mid.Y
	right := p.X >= mid.X
	switch {
	case top && !right:
		return 0
	case !top && !right:
		return 1
	case !top && right:
		return 2
	default:
		return 3
	}
}

// split turns leaf n into an internal node and moves its items into the
// four new children
func (q *Quadtree) split(n int32) {
	b := q.nodes[n].bounds
	depth := q.nodes[n].depth + 1
	items := q.nodes[n].items
	mid := b.Center()

	first := int32(len(q.nodes))
	q.nodes = append(q.nodes,
		q.newNode(Rect{Min: r2.Vec{X: b.Min.X, Y: mid.Y}, Max: r2.Vec{X: mid.X, Y: b.Max.Y}}, depth),
		q.newNode(Rect{Min: b.Min, Max: mid}, depth),
		q.newNode(Rect{Min: r2.Vec{X: mid.X, Y: b.Min.Y}, Max: r2.Vec{X: b.Max.X, Y: mid.Y}}, depth),
		q.newNode(Rect{Min: mid, Max: b.Max}, depth),
	)
	if int(depth) > q.depth {
		q.depth = int(depth)
	}

	q.nodes[n].children = first
	q.nodes[n].items = nil
	for _, it := range items {
		q.insertAt(first+quadrant(mid, it.Pos), it)
	}
	q.spare = append(q.spare, items[:0])
}

func (q *Quadtree) newNode(bounds Rect, depth int32) node {
	var items []Item
	if k := len(q.spare); k > 0 {
		items = q.spare[k-1]
		q.spare = q.spare[:k-1]
	}
	return node{
		bounds:   bounds,
		children: noChildren,
		depth:    depth,
		items:    items,
	}
}

// Query appends the id of every item inside area to out and returns it
func (q *Quadtree) Query(area Rect, out []BodyID) []BodyID {
	q.visit(0, area, func(it Item) {
		out = append(out, it.ID)
	})
	return out
}

// QueryRadius appends the id of every item within radius of center
func (q *Quadtree) QueryRadius(center r2.Vec, radius float64, out []BodyID) []BodyID {
	r2max := radius * radius
	q.visit(0, RectAround(center, radius), func(it Item) {
		if r2.Norm2(r2.Sub(it.Pos, center)) <= r2max {
			out = append(out, it.ID)
		}
	})
	return out
}

// Nearest returns the item closest to p within maxDist, ignoring exclude.
// Equal distances resolve to the lower id.
func (q *Quadtree) Nearest(p r2.Vec, maxDist float64, exclude BodyID) (BodyID, float64, bool) {
	var (
		best   BodyID
		bestD2 = maxDist * maxDist
		found  bool
	)
	q.visit(0, RectAround(p, maxDist), func(it Item) {
		if it.ID == exclude {
			return
		}
		d2 := r2.Norm2(r2.Sub(it.Pos, p))
		if d2 < bestD2 || (d2 == bestD2 && (!found || it.ID < best)) {
			best, bestD2, found = it.ID, d2, true
		}
	})
	if !found {
		return 0, 0, false
	}
	return best, math.Sqrt(bestD2), true
}

// visit calls fn for every item under node n whose position lies in area,
// skipping subtrees whose bounds miss area
func (q *Quadtree) visit(n int32, area Rect, fn func(Item)) {
	nd := &q.nodes[n]
	if !nd.bounds.Intersects(area) {
		return
	}
	if nd.children != noChildren {
		for i := int32(0); i < 4; i++ {
			q.visit(nd.children+i, area, fn)
		}
		return
	}
	for _, it := range nd.items {
		if area.Contains(it.Pos) {
			fn(it)
		}
	}
}

// ForEachNode walks the tree depth-first, parents before children.
// The tree must not be modified from visit.
func (q *Quadtree) ForEachNode(visit func(bounds Rect, hasChildren bool)) {
	q.walk(0, visit)
}

func (q *Quadtree) walk(n int32, visit func(Rect, bool)) {
	nd := &q.nodes[n]
	visit(nd.bounds, nd.children != noChildren)
	if nd.children == noChildren {
		return
	}
	for i := int32(0); i < 4; i++ {
		q.walk(nd.children+i, visit)
	}
}

// Bounds returns the rectangle covered by the root
func (q *Quadtree) Bounds() Rect { return q.bounds }

// Capacity returns the split threshold
func (q *Quadtree) Capacity() int { return q.capacity }

// Len returns the number of items stored
func (q *Quadtree) Len() int { return q.count }

// Rejected returns how many insertions since the last reset fell outside the bounds
func (q *Quadtree) Rejected() int { return q.rejected }

// NodeCount returns the number of nodes, internal and leaf
func (q *Quadtree) NodeCount() int { return len(q.nodes) }

// Depth returns the depth of the deepest node; a lone root has depth 0
func (q *Quadtree) Depth() int { return q.depth }
