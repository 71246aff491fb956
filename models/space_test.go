package models

import (
	"fmt"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadrant/geometry"
	"github.com/aukilabs/quadrant/spatial"
	"github.com/stretchr/testify/require"
)

func point(x, y float64) geometry.AABB {
	return geometry.PointAABB(geometry.NewVector2(x, y))
}

func box(x, y, halfX, halfY float64) geometry.AABB {
	return geometry.NewAABB(geometry.NewVector2(x, y), geometry.NewVector2(halfX, halfY))
}

func newTestSpace(t *testing.T, backend Backend) *Space {
	space, err := NewSpace(42, SpaceOptions{
		Name:     "test",
		Region:   box(0, 0, 100, 100),
		Backend:  backend,
		Capacity: 2,
	})
	require.NoError(t, err)
	return space
}

func TestNewSpace(t *testing.T) {
	t.Run("space is created with the quadtree backend by default", func(t *testing.T) {
		space, err := NewSpace(1, SpaceOptions{Region: box(0, 0, 10, 10)})
		require.NoError(t, err)
		require.Equal(t, BackendQuadtree, space.Backend)
		require.NotEmpty(t, space.SpaceUUID)
		require.Equal(t, box(0, 0, 10, 10), space.Region())
	})

	t.Run("space is created with the rtree backend", func(t *testing.T) {
		space, err := NewSpace(1, SpaceOptions{
			Region:  box(0, 0, 10, 10),
			Backend: BackendRTree,
		})
		require.NoError(t, err)
		require.Equal(t, "rtree", space.DebugInfo().Backend)
	})

	t.Run("unknown backend returns an error", func(t *testing.T) {
		_, err := NewSpace(1, SpaceOptions{
			Region:  box(0, 0, 10, 10),
			Backend: "btree",
		})
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeInvalidSpace))
	})

	t.Run("invalid region returns an error", func(t *testing.T) {
		_, err := NewSpace(1, SpaceOptions{})
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeInvalidSpace))
	})
}

func TestSpace(t *testing.T) {
	for _, backend := range []Backend{BackendQuadtree, BackendRTree} {
		t.Run(string(backend), func(t *testing.T) {
			testSpace(t, newTestSpace(t, backend))
		})
	}
}

func testSpace(t *testing.T, space *Space) {
	t.Run("insert", func(t *testing.T) {
		id, err := space.Insert("a", point(10, 10))
		require.NoError(t, err)
		require.Equal(t, "a", id)

		id, err = space.Insert("", box(-50, -50, 5, 5))
		require.NoError(t, err)
		require.NotEmpty(t, id)

		bounds, ok := space.Item(id)
		require.True(t, ok)
		require.Equal(t, box(-50, -50, 5, 5), bounds)
		require.Equal(t, 2, space.Len())
	})

	t.Run("insert existing item returns an error", func(t *testing.T) {
		_, err := space.Insert("a", point(20, 20))
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeItemExists))

		bounds, _ := space.Item("a")
		require.Equal(t, point(10, 10), bounds)
	})

	t.Run("insert out of bounds returns an error", func(t *testing.T) {
		_, err := space.Insert("b", point(200, 0))
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeOutOfBounds))
		require.Equal(t, 2, space.Len())
	})

	t.Run("insert invalid bounds returns an error", func(t *testing.T) {
		_, err := space.Insert("b", geometry.AABB{
			Min: geometry.NewVector2(1, 1),
			Max: geometry.NewVector2(0, 0),
		})
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeInvalidBounds))
	})

	t.Run("set moves an item", func(t *testing.T) {
		err := space.Set("a", point(30, 30))
		require.NoError(t, err)

		items, _ := space.Query(point(30, 30), 0)
		require.Len(t, items, 1)
		require.Equal(t, "a", items[0].ID)

		items, _ = space.Query(point(10, 10), 0)
		require.Empty(t, items)
		require.Equal(t, 2, space.Len())
	})

	t.Run("set keeps an item when refused", func(t *testing.T) {
		err := space.Set("a", point(300, 30))
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeOutOfBounds))

		bounds, ok := space.Item("a")
		require.True(t, ok)
		require.Equal(t, point(30, 30), bounds)

		items, _ := space.Query(point(30, 30), 0)
		require.Len(t, items, 1)
	})

	t.Run("query", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			_, err := space.Insert(fmt.Sprintf("q%d", i), point(float64(60+i), 60))
			require.NoError(t, err)
		}

		items, truncated := space.Query(box(65, 60, 5, 1), 0)
		require.Len(t, items, 10)
		require.False(t, truncated)

		items, truncated = space.Query(box(65, 60, 5, 1), 4)
		require.Len(t, items, 4)
		require.True(t, truncated)

		items, truncated = space.Query(geometry.NewCircle(geometry.NewVector2(60, 60), 1), 4)
		require.Len(t, items, 2)
		require.False(t, truncated)
	})

	t.Run("remove", func(t *testing.T) {
		err := space.Remove("q0")
		require.NoError(t, err)

		err = space.Remove("q0")
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeItemNotFound))
	})

	t.Run("clear", func(t *testing.T) {
		count := space.Len()
		require.Equal(t, count, space.Clear())
		require.Zero(t, space.Len())

		items, _ := space.Query(space.Region(), 0)
		require.Empty(t, items)

		_, err := space.Insert("a", point(10, 10))
		require.NoError(t, err)
	})
}

// lockedIndex refuses every insertion once locked.
type lockedIndex struct {
	spatial.Index[string]
	locked bool
}

func (i *lockedIndex) Insert(id string, bounds geometry.AABB) bool {
	if i.locked {
		return false
	}
	return i.Index.Insert(id, bounds)
}

func TestSpaceSetRestoreRefused(t *testing.T) {
	space := newTestSpace(t, BackendQuadtree)
	index := &lockedIndex{Index: space.index}
	space.index = index

	_, err := space.Insert("a", point(10, 10))
	require.NoError(t, err)
	_, err = space.Insert("b", point(20, 20))
	require.NoError(t, err)

	index.locked = true
	err = space.Set("a", point(30, 30))
	require.Error(t, err)
	require.True(t, errors.IsType(err, ErrTypeCapacityExhausted))

	_, ok := space.Item("a")
	require.False(t, ok)
	require.Equal(t, 1, space.Len())
	require.Equal(t, 1, index.Len())

	items, _ := space.Query(space.Region(), 0)
	require.Len(t, items, 1)
	require.Equal(t, "b", items[0].ID)
}

func TestSpaceStrictCapacity(t *testing.T) {
	space, err := NewSpace(1, SpaceOptions{
		Region:         box(0, 0, 1, 1),
		Capacity:       1,
		MinSize:        1,
		StrictCapacity: true,
	})
	require.NoError(t, err)

	_, err = space.Insert("a", point(0.5, 0.5))
	require.NoError(t, err)

	_, err = space.Insert("b", point(0.6, 0.6))
	require.Error(t, err)
	require.True(t, errors.IsType(err, ErrTypeCapacityExhausted))
}
