package quadtree

import (
	"github.com/aukilabs/quadrant/geometry"
	"github.com/aukilabs/quadrant/spatial"
)

// QueryRange returns every item of the subtree whose bounds intersect r. Nodes
// whose region does not intersect r are skipped along with their quadrants.
// Results are in no particular order.
func (n *Node[K]) QueryRange(r geometry.Range) []spatial.Item[K] {
	var items []spatial.Item[K]
	n.QueryRangeFunc(r, func(id K, bounds geometry.AABB) bool {
		items = append(items, spatial.Item[K]{
			ID:     id,
			Bounds: bounds,
		})
		return true
	})
	return items
}

// QueryRangeFunc calls fn for every item of the subtree whose bounds intersect
// r, until fn returns false. It returns false when fn stopped the walk.
//
// The tree must not be modified from fn.
func (n *Node[K]) QueryRangeFunc(r geometry.Range, fn func(id K, bounds geometry.AABB) bool) bool {
	if !r.IntersectsAABB(n.region) {
		return true
	}

	for id, bounds := range n.items {
		if r.IntersectsAABB(bounds) && !fn(id, bounds) {
			return false
		}
	}

	if n.children == nil {
		return true
	}
	for _, c := range n.children {
		if !c.QueryRangeFunc(r, fn) {
			return false
		}
	}
	return true
}
