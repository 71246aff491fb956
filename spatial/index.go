// Package spatial defines what the spatial index backends have in common.
package spatial

import "github.com/aukilabs/quadrant/geometry"

// Item is an indexed identifier with the bounds it was inserted with.
type Item[K comparable] struct {
	ID     K
	Bounds geometry.AABB
}

// DebugInfo describes the shape of an index. Fields that do not apply to a
// backend are left zero.
type DebugInfo struct {
	Backend           string
	Region            geometry.AABB
	ItemCount         int
	NodeCount         int
	LeafCount         int
	MaxDepth          int
	SpanningItemCount int

	// The number of items stored at each depth, root first.
	Occupancy []int
}

// Index is the interface that describes a 2D spatial index keyed by
// identifier.
//
// Implementations are not safe for concurrent use: callers serialize access.
type Index[K comparable] interface {
	// Inserts an item. Returns false when the index refuses it, either because
	// its bounds are out of the indexed region or because no room is left.
	//
	// Identifier uniqueness is the caller responsibility.
	Insert(id K, bounds geometry.AABB) bool

	// Removes an item. Returns false when the id is not indexed.
	Remove(id K) bool

	// Returns every item whose bounds intersect r, in no particular order.
	QueryRange(r geometry.Range) []Item[K]

	// Calls fn for every item whose bounds intersect r until fn returns
	// false. Returns false when the walk was stopped by fn.
	QueryRangeFunc(r geometry.Range, fn func(id K, bounds geometry.AABB) bool) bool

	// Removes all the items.
	Clear()

	// Returns the number of indexed items.
	Len() int

	// Returns information about the index structure.
	DebugInfo() DebugInfo
}
