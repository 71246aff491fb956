package quadtree

import (
	"github.com/aukilabs/quadrant/geometry"
	"github.com/aukilabs/quadrant/spatial"
)

// Quadrant indexes within a node children.
const (
	NW = iota
	NE
	SW
	SE
)

var _ spatial.Index[string] = (*Node[string])(nil)

// Node is a quadtree node. The tree itself is its root node.
type Node[K comparable] struct {
	region   geometry.AABB
	conf     *config
	items    map[K]geometry.AABB
	children *[4]*Node[K]
}

func newNode[K comparable](region geometry.AABB, conf *config) *Node[K] {
	return &Node[K]{
		region: region,
		conf:   conf,
		items:  make(map[K]geometry.AABB),
	}
}

// Region returns the area covered by the node.
func (n *Node[K]) Region() geometry.AABB {
	return n.region
}

// Capacity returns the number of items a leaf holds before subdividing.
func (n *Node[K]) Capacity() int {
	return n.conf.capacity
}

// MinSize returns the minimum width and height of a quadrant.
func (n *Node[K]) MinSize() float64 {
	return n.conf.minSize
}

// IsLeaf reports whether the node has not been subdivided.
func (n *Node[K]) IsLeaf() bool {
	return n.children == nil
}

// Children returns the node quadrants in NW, NE, SW, SE order. The second
// value is false when the node is a leaf.
func (n *Node[K]) Children() ([4]*Node[K], bool) {
	if n.children == nil {
		return [4]*Node[K]{}, false
	}
	return *n.children, true
}

// Len returns the number of items stored in the subtree.
func (n *Node[K]) Len() int {
	count := len(n.items)
	if n.children != nil {
		for _, c := range n.children {
			count += c.Len()
		}
	}
	return count
}

// Insert stores an item in the deepest node whose region fully contains its
// bounds. It returns false when bounds are not inside the node region, or when
// strict capacity is enabled and the leaf that should hold the item is full
// and too small to subdivide.
//
// Insert does not check whether id is already stored: inserting a live id
// again may create a second entry that must be removed separately.
func (n *Node[K]) Insert(id K, bounds geometry.AABB) bool {
	if !n.region.ContainsAABB(bounds) {
		return false
	}

	if n.children == nil {
		if len(n.items) < n.conf.capacity {
			n.items[id] = bounds
			return true
		}

		if !n.Subdivide() {
			if n.conf.strictCapacity {
				return false
			}
			n.items[id] = bounds
			return true
		}
	}

	if c := n.childFor(bounds); c != nil {
		return c.Insert(id, bounds)
	}

	// The item spans several quadrants and belongs here.
	n.items[id] = bounds
	return true
}

// childFor returns the first quadrant, in NW, NE, SW, SE order, that fully
// contains bounds.
func (n *Node[K]) childFor(bounds geometry.AABB) *Node[K] {
	for _, c := range n.children {
		if c.region.ContainsAABB(bounds) {
			return c
		}
	}
	return nil
}

// Subdivide splits the node into four quadrants and moves every item that fits
// in a single quadrant down to it. Items a quadrant refuses stay in the node.
//
// It does nothing and returns true when the node is already subdivided, and
// returns false without changing the node when quadrants would be smaller than
// the minimum size.
func (n *Node[K]) Subdivide() bool {
	if n.children != nil {
		return true
	}

	if !n.canSubdivide() {
		return false
	}

	quadrants := n.quadrants()
	n.children = &[4]*Node[K]{}
	for i, q := range quadrants {
		n.children[i] = newNode[K](q, n.conf)
	}

	for id, bounds := range n.items {
		if c := n.childFor(bounds); c != nil && c.Insert(id, bounds) {
			delete(n.items, id)
		}
	}
	return true
}

func (n *Node[K]) canSubdivide() bool {
	half := n.region.Half()
	if half.X() < n.conf.minSize || half.Y() < n.conf.minSize {
		return false
	}

	// Near the precision of the coordinates the center rounds onto an edge,
	// which would produce a quadrant as large as the node.
	lo := n.region.Min
	hi := n.region.Max
	center := n.region.Center()
	return lo.X() < center.X() && center.X() < hi.X() &&
		lo.Y() < center.Y() && center.Y() < hi.Y()
}

// quadrants splits the region at its center. Quadrants share their edges.
func (n *Node[K]) quadrants() [4]geometry.AABB {
	lo := n.region.Min
	hi := n.region.Max
	center := n.region.Center()

	return [4]geometry.AABB{
		NW: {Min: lo, Max: center},
		NE: {Min: geometry.NewVector2(center.X(), lo.Y()), Max: geometry.NewVector2(hi.X(), center.Y())},
		SW: {Min: geometry.NewVector2(lo.X(), center.Y()), Max: geometry.NewVector2(center.X(), hi.Y())},
		SE: {Min: center, Max: hi},
	}
}

// Remove deletes the item with the given id from the subtree. It returns false
// when the id is not found. Quadrants are never merged back, even when they
// become empty.
func (n *Node[K]) Remove(id K) bool {
	if _, ok := n.items[id]; ok {
		delete(n.items, id)
		return true
	}

	if n.children == nil {
		return false
	}

	for _, c := range n.children {
		if c.Remove(id) {
			return true
		}
	}
	return false
}

// Clear removes every item and quadrant from the subtree, leaving the node an
// empty leaf.
func (n *Node[K]) Clear() {
	clear(n.items)

	if n.children == nil {
		return
	}
	for _, c := range n.children {
		c.Clear()
	}
	n.children = nil
}
