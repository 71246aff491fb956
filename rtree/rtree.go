// Package rtree implements a spatial index backed by an R-tree.
package rtree

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadrant/geometry"
	"github.com/aukilabs/quadrant/spatial"
	"github.com/dhconnelly/rtreego"
)

const (
	// The error type returned when an R-tree is created with a bad region or
	// branching.
	ErrTypeInvalidConfig = "rtree_invalid_config"

	// The default minimum and maximum number of entries per R-tree node.
	DefaultMinChildren = 25
	DefaultMaxChildren = 50

	backendName = "rtree"

	// R-tree rectangles cannot have a zero length, and rectangles that only
	// touch are not reported as intersecting. Query envelopes are padded
	// relative to this value and candidates are then filtered with exact
	// predicates.
	tolerance = 1e-9
)

var _ spatial.Index[string] = (*Tree[string])(nil)

type config struct {
	minChildren int
	maxChildren int
}

// Option configures an R-tree at construction.
type Option func(*config)

// WithBranching sets the minimum and maximum number of entries per node.
func WithBranching(minChildren, maxChildren int) Option {
	return func(c *config) {
		c.minChildren = minChildren
		c.maxChildren = maxChildren
	}
}

// Tree is a spatial index over a fixed region. It is not safe for concurrent
// use.
type Tree[K comparable] struct {
	region  geometry.AABB
	conf    config
	rtree   *rtreego.Rtree
	entries map[K]*entry[K]
}

// New returns an empty R-tree that accepts items within region.
func New[K comparable](region geometry.AABB, options ...Option) (*Tree[K], error) {
	conf := config{
		minChildren: DefaultMinChildren,
		maxChildren: DefaultMaxChildren,
	}
	for _, o := range options {
		o(&conf)
	}

	if !region.IsValid() || region.Width() <= 0 || region.Height() <= 0 ||
		math.IsInf(region.Width(), 0) || math.IsInf(region.Height(), 0) {
		return nil, errors.New("region must have a finite positive extent").
			WithType(ErrTypeInvalidConfig).
			WithTag("region", region.String())
	}

	if conf.minChildren < 1 || conf.maxChildren < 2*conf.minChildren {
		return nil, errors.New("max children must be at least twice min children").
			WithType(ErrTypeInvalidConfig).
			WithTag("min_children", conf.minChildren).
			WithTag("max_children", conf.maxChildren)
	}

	return &Tree[K]{
		region:  region,
		conf:    conf,
		rtree:   rtreego.NewTree(2, conf.minChildren, conf.maxChildren),
		entries: make(map[K]*entry[K]),
	}, nil
}

// Region returns the area the tree accepts items in.
func (t *Tree[K]) Region() geometry.AABB {
	return t.region
}

// Insert indexes an item. It returns false when the bounds are not fully
// within the tree region or when the id is already indexed.
func (t *Tree[K]) Insert(id K, bounds geometry.AABB) bool {
	if !t.region.ContainsAABB(bounds) {
		return false
	}
	if _, ok := t.entries[id]; ok {
		return false
	}

	e := &entry[K]{
		id:     id,
		bounds: bounds,
		rect:   envelope(bounds, false),
	}
	t.rtree.Insert(e)
	t.entries[id] = e
	return true
}

func (t *Tree[K]) Remove(id K) bool {
	e, ok := t.entries[id]
	if !ok {
		return false
	}

	delete(t.entries, id)
	return t.rtree.Delete(e)
}

func (t *Tree[K]) QueryRange(r geometry.Range) []spatial.Item[K] {
	var items []spatial.Item[K]
	t.QueryRangeFunc(r, func(id K, bounds geometry.AABB) bool {
		items = append(items, spatial.Item[K]{
			ID:     id,
			Bounds: bounds,
		})
		return true
	})
	return items
}

func (t *Tree[K]) QueryRangeFunc(r geometry.Range, fn func(id K, bounds geometry.AABB) bool) bool {
	if len(t.entries) == 0 || !r.IntersectsAABB(t.region) {
		return true
	}

	for _, s := range t.rtree.SearchIntersect(envelope(r.Bounds(), true)) {
		e := s.(*entry[K])
		if !r.IntersectsAABB(e.bounds) {
			continue
		}
		if !fn(e.id, e.bounds) {
			return false
		}
	}
	return true
}

func (t *Tree[K]) Clear() {
	t.rtree = rtreego.NewTree(2, t.conf.minChildren, t.conf.maxChildren)
	clear(t.entries)
}

func (t *Tree[K]) Len() int {
	return len(t.entries)
}

func (t *Tree[K]) DebugInfo() spatial.DebugInfo {
	return spatial.DebugInfo{
		Backend:   backendName,
		Region:    t.region,
		ItemCount: len(t.entries),
		MaxDepth:  t.rtree.Depth(),
	}
}

type entry[K comparable] struct {
	id     K
	bounds geometry.AABB
	rect   rtreego.Rect
}

func (e *entry[K]) Bounds() rtreego.Rect {
	return e.rect
}

// envelope converts bounds to an R-tree rectangle. Degenerate axes get the
// minimal length the R-tree accepts, and padded envelopes grow by that length
// on every side.
func envelope(bounds geometry.AABB, padded bool) rtreego.Rect {
	pad := padding(bounds)

	lo := bounds.Min
	width := math.Max(bounds.Width(), pad)
	height := math.Max(bounds.Height(), pad)
	if padded {
		lo = lo.Sub(geometry.NewVector2(pad, pad))
		width += 2 * pad
		height += 2 * pad
	}

	rect, err := rtreego.NewRect(rtreego.Point{lo.X(), lo.Y()}, []float64{width, height})
	if err != nil {
		// Lengths are always positive.
		panic(err)
	}
	return rect
}

// padding returns a length that is not absorbed by float rounding at the
// magnitude of the given bounds.
func padding(bounds geometry.AABB) float64 {
	magnitude := math.Max(
		math.Max(math.Abs(bounds.Min.X()), math.Abs(bounds.Min.Y())),
		math.Max(math.Abs(bounds.Max.X()), math.Abs(bounds.Max.Y())),
	)
	return tolerance * math.Max(1, magnitude)
}
