package geometry

import (
	"math"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"
)

func EqualWithEpsilon(a float64, b float64, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

func Clamp(value float64, low float64, high float64) float64 {
	return mgl64.Clamp(value, low, high)
}

// Vector2 is an immutable 2D vector. Every operation returns a new value.
type Vector2 struct {
	v mgl64.Vec2
}

func NewVector2(x, y float64) Vector2 {
	return Vector2{v: mgl64.Vec2{x, y}}
}

func (a Vector2) X() float64 {
	return a.v.X()
}

func (a Vector2) Y() float64 {
	return a.v.Y()
}

func (a Vector2) Add(b Vector2) Vector2 {
	return Vector2{v: a.v.Add(b.v)}
}

func (a Vector2) Sub(b Vector2) Vector2 {
	return Vector2{v: a.v.Sub(b.v)}
}

func (a Vector2) Mul(s float64) Vector2 {
	return Vector2{v: a.v.Mul(s)}
}

func (a Vector2) Dot(b Vector2) float64 {
	return a.v.Dot(b.v)
}

func (a Vector2) Length() float64 {
	return a.v.Len()
}

func (a Vector2) LengthSquared() float64 {
	return a.v.Dot(a.v)
}

func (a Vector2) DistanceSquared(b Vector2) float64 {
	return a.Sub(b).LengthSquared()
}

func (a Vector2) Distance(b Vector2) float64 {
	return a.Sub(b).Length()
}

func (a Vector2) Normalized() Vector2 {
	if a.LengthSquared() == 0 {
		return a
	}
	return Vector2{v: a.v.Normalize()}
}

func (a Vector2) Equal(b Vector2) bool {
	return a.v == b.v
}

func (a Vector2) EqualWithEpsilon(b Vector2, epsilon float64) bool {
	return EqualWithEpsilon(a.X(), b.X(), epsilon) &&
		EqualWithEpsilon(a.Y(), b.Y(), epsilon)
}

// IsFinite reports whether both components are neither NaN nor infinite.
func (a Vector2) IsFinite() bool {
	return !math.IsNaN(a.X()) && !math.IsInf(a.X(), 0) &&
		!math.IsNaN(a.Y()) && !math.IsInf(a.Y(), 0)
}

func (a Vector2) String() string {
	return "[" + strconv.FormatFloat(a.X(), 'f', -1, 64) + "," + strconv.FormatFloat(a.Y(), 'f', -1, 64) + "]"
}

// Min returns the component-wise minimum of a and b.
func Min(a Vector2, b Vector2) Vector2 {
	return NewVector2(math.Min(a.X(), b.X()), math.Min(a.Y(), b.Y()))
}

// Max returns the component-wise maximum of a and b.
func Max(a Vector2, b Vector2) Vector2 {
	return NewVector2(math.Max(a.X(), b.X()), math.Max(a.Y(), b.Y()))
}
