/*
Package quadtree implements a region quadtree.

A node covers a fixed axis-aligned region. Items are stored in the deepest node
whose region fully contains their bounds: leaves hold up to a capacity of items
and split into four quadrants once full, and items that straddle quadrant edges
stay in the branch where the quadrants meet. Subdivision stops once quadrants
would become smaller than a configured minimum size.

Quadrants are ordered NW, NE, SW, SE, with y growing southward:

	(min.x, min.y) ===================
	               |  NW    |   NE   |
	               |        |        |
	               ==== center =======
	               |  SW    |   SE   |
	               |        |        |
	               =================== (max.x, max.y)

Nodes are not safe for concurrent use.
*/
package quadtree

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadrant/geometry"
)

const (
	// The error type returned when a quadtree is created with a bad region or
	// options.
	ErrTypeInvalidConfig = "quadtree_invalid_config"

	// The default number of items a leaf holds before subdividing.
	DefaultCapacity = 8

	// The default minimum width and height of a quadrant.
	DefaultMinSize = 1.0
)

type config struct {
	capacity       int
	minSize        float64
	strictCapacity bool
}

// Option configures a quadtree at construction.
type Option func(*config)

// WithCapacity sets the number of items a leaf stores before it subdivides.
func WithCapacity(n int) Option {
	return func(c *config) {
		c.capacity = n
	}
}

// WithMinSize sets the smallest width and height a quadrant can have. A leaf
// whose quadrants would be smaller does not subdivide. Sizes below what the
// region coordinates can represent are raised to that precision.
func WithMinSize(size float64) Option {
	return func(c *config) {
		c.minSize = size
	}
}

// WithStrictCapacity makes leaves that cannot subdivide anymore refuse items
// beyond their capacity. By default they keep accepting them.
func WithStrictCapacity() Option {
	return func(c *config) {
		c.strictCapacity = true
	}
}

// New returns the root node of a quadtree covering region.
func New[K comparable](region geometry.AABB, options ...Option) (*Node[K], error) {
	conf := config{
		capacity: DefaultCapacity,
		minSize:  DefaultMinSize,
	}
	for _, o := range options {
		o(&conf)
	}

	if err := validate(region, conf); err != nil {
		return nil, err
	}

	conf.minSize = math.Max(conf.minSize, precisionFloor(region))
	return newNode[K](region, &conf), nil
}

// precisionFloor returns the smallest quadrant size that the coordinates of
// region can still represent with a distinct center.
func precisionFloor(region geometry.AABB) float64 {
	magnitude := math.Max(
		math.Max(math.Abs(region.Min.X()), math.Abs(region.Min.Y())),
		math.Max(math.Abs(region.Max.X()), math.Abs(region.Max.Y())),
	)
	return 2 * (math.Nextafter(magnitude, math.Inf(1)) - magnitude)
}

func validate(region geometry.AABB, conf config) error {
	if !region.IsValid() || region.Width() <= 0 || region.Height() <= 0 ||
		math.IsInf(region.Width(), 0) || math.IsInf(region.Height(), 0) {
		return errors.New("region must have a finite positive extent").
			WithType(ErrTypeInvalidConfig).
			WithTag("region", region.String())
	}

	if conf.capacity < 1 {
		return errors.New("capacity must be at least 1").
			WithType(ErrTypeInvalidConfig).
			WithTag("capacity", conf.capacity)
	}

	if !(conf.minSize > 0) || math.IsInf(conf.minSize, 0) {
		return errors.New("min size must be a finite positive number").
			WithType(ErrTypeInvalidConfig).
			WithTag("min_size", conf.minSize)
	}
	return nil
}
