package models

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadrant/geometry"
	"github.com/aukilabs/quadrant/spatial"
	"github.com/mmcloughlin/geohash"
)

const (
	ErrTypeInvalidRange = "invalid_range"

	RangeTypeRect    = "rect"
	RangeTypeCircle  = "circle"
	RangeTypeGeohash = "geohash"
)

// Vector2JSON is the JSON representation of a 2D vector.
type Vector2JSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vector2JSON) Vector2() geometry.Vector2 {
	return geometry.NewVector2(v.X, v.Y)
}

func Vector2ToJSON(v geometry.Vector2) Vector2JSON {
	return Vector2JSON{
		X: v.X(),
		Y: v.Y(),
	}
}

// BoundsJSON is the JSON representation of an axis-aligned box. A missing
// half extent describes a point.
type BoundsJSON struct {
	Center Vector2JSON  `json:"center"`
	Half   *Vector2JSON `json:"half,omitempty"`
}

// AABB converts the bounds to a box. Negative half extents are refused.
func (b BoundsJSON) AABB() (geometry.AABB, error) {
	center := b.Center.Vector2()
	if b.Half == nil {
		return geometry.PointAABB(center), nil
	}

	half := b.Half.Vector2()
	if !(half.X() >= 0) || !(half.Y() >= 0) {
		return geometry.AABB{}, errors.New("half extent must not be negative").
			WithType(ErrTypeInvalidBounds).
			WithTag("half", half.String())
	}

	bounds := geometry.NewAABB(center, half)
	if !bounds.IsValid() {
		return geometry.AABB{}, errors.New("bounds must be finite").
			WithType(ErrTypeInvalidBounds).
			WithTag("bounds", bounds.String())
	}
	return bounds, nil
}

func BoundsToJSON(b geometry.AABB) BoundsJSON {
	res := BoundsJSON{Center: Vector2ToJSON(b.Center())}
	if !b.IsPoint() {
		half := Vector2ToJSON(b.Half())
		res.Half = &half
	}
	return res
}

// RangeJSON is the JSON representation of a query range.
//
// Geohash cells map longitudes to x and latitudes to y.
type RangeJSON struct {
	Type    string      `json:"type"`
	Center  Vector2JSON `json:"center"`
	Half    Vector2JSON `json:"half"`
	Radius  float64     `json:"radius,omitempty"`
	Geohash string      `json:"geohash,omitempty"`
}

// Range converts the JSON range to a geometry range. Geohash ranges are
// refused when allowGeohash is false.
func (r RangeJSON) Range(allowGeohash bool) (geometry.Range, error) {
	switch r.Type {
	case RangeTypeRect:
		half := r.Half.Vector2()
		if !(half.X() >= 0) || !(half.Y() >= 0) {
			return nil, errors.New("half extent must not be negative").
				WithType(ErrTypeInvalidRange).
				WithTag("half", half.String())
		}

		bounds := geometry.NewAABB(r.Center.Vector2(), half)
		if !bounds.IsValid() {
			return nil, errors.New("rect must be finite").
				WithType(ErrTypeInvalidRange).
				WithTag("rect", bounds.String())
		}
		return bounds, nil

	case RangeTypeCircle:
		circle := geometry.NewCircle(r.Center.Vector2(), r.Radius)
		if !circle.IsValid() {
			return nil, errors.New("circle must have a finite center and a non negative radius").
				WithType(ErrTypeInvalidRange).
				WithTag("radius", r.Radius)
		}
		return circle, nil

	case RangeTypeGeohash:
		if !allowGeohash {
			return nil, errors.New("geohash ranges are disabled").
				WithType(ErrTypeInvalidRange)
		}
		return GeohashBounds(r.Geohash)

	default:
		return nil, errors.New("unknown range type").
			WithType(ErrTypeInvalidRange).
			WithTag("type", r.Type)
	}
}

// GeohashBounds returns the cell covered by a geohash, with longitudes on the
// x axis and latitudes on the y axis.
func GeohashBounds(hash string) (geometry.AABB, error) {
	if hash == "" {
		return geometry.AABB{}, errors.New("empty geohash").
			WithType(ErrTypeInvalidRange)
	}
	if err := geohash.Validate(hash); err != nil {
		return geometry.AABB{}, errors.New("invalid geohash").
			WithType(ErrTypeInvalidRange).
			WithTag("geohash", hash).
			Wrap(err)
	}

	box := geohash.BoundingBox(hash)
	return geometry.AABBFromMinMax(
		geometry.NewVector2(box.MinLng, box.MinLat),
		geometry.NewVector2(box.MaxLng, box.MaxLat),
	), nil
}

// ItemJSON is the JSON representation of an indexed item.
type ItemJSON struct {
	ID     string     `json:"id"`
	Bounds BoundsJSON `json:"bounds"`
}

func ItemsToJSON(items []spatial.Item[string]) []ItemJSON {
	res := make([]ItemJSON, len(items))
	for i, item := range items {
		res[i] = ItemJSON{
			ID:     item.ID,
			Bounds: BoundsToJSON(item.Bounds),
		}
	}
	return res
}

// SpaceJSON is the JSON representation of a space.
type SpaceJSON struct {
	ID        string     `json:"id"`
	UUID      string     `json:"uuid"`
	Name      string     `json:"name,omitempty"`
	Backend   Backend    `json:"backend"`
	Region    BoundsJSON `json:"region"`
	ItemCount int        `json:"item_count"`
	CreatedAt time.Time  `json:"created_at"`
}

func SpaceToJSON(globalID string, s *Space) SpaceJSON {
	return SpaceJSON{
		ID:        globalID,
		UUID:      s.SpaceUUID,
		Name:      s.Name,
		Backend:   s.Backend,
		Region:    BoundsToJSON(s.Region()),
		ItemCount: s.Len(),
		CreatedAt: s.CreatedAt,
	}
}

// DebugInfoJSON is the JSON representation of a space index structure.
type DebugInfoJSON struct {
	Backend           string     `json:"backend"`
	Region            BoundsJSON `json:"region"`
	ItemCount         int        `json:"item_count"`
	NodeCount         int        `json:"node_count"`
	LeafCount         int        `json:"leaf_count"`
	MaxDepth          int        `json:"max_depth"`
	SpanningItemCount int        `json:"spanning_item_count"`
	Occupancy         []int      `json:"occupancy,omitempty"`
}

func DebugInfoToJSON(info spatial.DebugInfo) DebugInfoJSON {
	return DebugInfoJSON{
		Backend:           info.Backend,
		Region:            BoundsToJSON(info.Region),
		ItemCount:         info.ItemCount,
		NodeCount:         info.NodeCount,
		LeafCount:         info.LeafCount,
		MaxDepth:          info.MaxDepth,
		SpanningItemCount: info.SpanningItemCount,
		Occupancy:         info.Occupancy,
	}
}
