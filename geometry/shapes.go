package geometry

import "math"

// Range is a query shape that can be tested against axis-aligned bounds.
type Range interface {
	// Reports whether the shape shares at least one point with b. Edges are
	// inclusive.
	IntersectsAABB(b AABB) bool

	// The smallest AABB enclosing the shape.
	Bounds() AABB
}

// AABB is an axis-aligned bounding box. Edges are inclusive, a zero-extent box
// represents a point.
type AABB struct {
	Min Vector2
	Max Vector2
}

// NewAABB returns the box centered on center that extends half in each
// direction.
func NewAABB(center Vector2, half Vector2) AABB {
	return AABB{
		Min: center.Sub(half),
		Max: center.Add(half),
	}
}

// AABBFromMinMax returns the box spanning the two corners, in any order.
func AABBFromMinMax(a Vector2, b Vector2) AABB {
	return AABB{
		Min: Min(a, b),
		Max: Max(a, b),
	}
}

func PointAABB(p Vector2) AABB {
	return AABB{Min: p, Max: p}
}

// Center returns the middle of the box. It stays finite for any box with
// finite corners.
func (b AABB) Center() Vector2 {
	if c := b.Min.Add(b.Max).Mul(0.5); c.IsFinite() {
		return c
	}
	return b.Min.Mul(0.5).Add(b.Max.Mul(0.5))
}

// Half returns the half extents of the box. It stays finite for any box with
// finite corners.
func (b AABB) Half() Vector2 {
	if h := b.Max.Sub(b.Min).Mul(0.5); h.IsFinite() {
		return h
	}
	return b.Max.Mul(0.5).Sub(b.Min.Mul(0.5))
}

func (b AABB) Width() float64 {
	return b.Max.X() - b.Min.X()
}

func (b AABB) Height() float64 {
	return b.Max.Y() - b.Min.Y()
}

func (b AABB) IsPoint() bool {
	return b.Min.Equal(b.Max)
}

// IsValid reports whether the corners are finite and ordered.
func (b AABB) IsValid() bool {
	return b.Min.IsFinite() && b.Max.IsFinite() &&
		b.Min.X() <= b.Max.X() && b.Min.Y() <= b.Max.Y()
}

func (b AABB) ContainsPoint(p Vector2) bool {
	return p.X() >= b.Min.X() && p.X() <= b.Max.X() &&
		p.Y() >= b.Min.Y() && p.Y() <= b.Max.Y()
}

// ContainsAABB reports whether o lies entirely inside b.
func (b AABB) ContainsAABB(o AABB) bool {
	return o.Min.X() >= b.Min.X() && o.Max.X() <= b.Max.X() &&
		o.Min.Y() >= b.Min.Y() && o.Max.Y() <= b.Max.Y()
}

func (b AABB) IntersectsAABB(o AABB) bool {
	return b.Min.X() <= o.Max.X() && b.Max.X() >= o.Min.X() &&
		b.Min.Y() <= o.Max.Y() && b.Max.Y() >= o.Min.Y()
}

func (b AABB) Bounds() AABB {
	return b
}

// ClosestPoint returns the point of b nearest to p.
func (b AABB) ClosestPoint(p Vector2) Vector2 {
	return NewVector2(
		Clamp(p.X(), b.Min.X(), b.Max.X()),
		Clamp(p.Y(), b.Min.Y(), b.Max.Y()),
	)
}

// Expand returns b grown by margin on every side.
func (b AABB) Expand(margin float64) AABB {
	m := NewVector2(margin, margin)
	return AABB{
		Min: b.Min.Sub(m),
		Max: b.Max.Add(m),
	}
}

func (b AABB) String() string {
	return "{min: " + b.Min.String() + ", max: " + b.Max.String() + "}"
}

type Circle struct {
	Center Vector2
	Radius float64
}

func NewCircle(center Vector2, radius float64) Circle {
	return Circle{Center: center, Radius: radius}
}

func (c Circle) ContainsPoint(p Vector2) bool {
	return c.Center.DistanceSquared(p) <= c.Radius*c.Radius
}

func (c Circle) IntersectsAABB(b AABB) bool {
	closest := b.ClosestPoint(c.Center)
	return c.ContainsPoint(closest)
}

func (c Circle) IntersectsCircle(o Circle) bool {
	r := c.Radius + o.Radius
	return c.Center.DistanceSquared(o.Center) <= r*r
}

func (c Circle) Bounds() AABB {
	return NewAABB(c.Center, NewVector2(c.Radius, c.Radius))
}

// IsValid reports whether the circle has a finite center and a finite,
// non-negative radius.
func (c Circle) IsValid() bool {
	return c.Center.IsFinite() && c.Radius >= 0 && !math.IsInf(c.Radius, 0)
}
