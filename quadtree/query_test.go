package quadtree

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/aukilabs/quadrant/geometry"
	"github.com/stretchr/testify/require"
)

func randomPoint(rnd *rand.Rand, extent float64) geometry.Vector2 {
	return geometry.NewVector2(
		(rnd.Float64()*2-1)*extent,
		(rnd.Float64()*2-1)*extent,
	)
}

func randomRange(rnd *rand.Rand, extent float64) geometry.Range {
	center := randomPoint(rnd, extent)
	if rnd.Intn(2) == 0 {
		return geometry.NewCircle(center, rnd.Float64()*extent/2)
	}
	return geometry.NewAABB(center, geometry.NewVector2(rnd.Float64()*extent/2, rnd.Float64()*extent/2))
}

func bruteForce(items map[string]geometry.AABB, r geometry.Range) []string {
	ids := []string{}
	for id, bounds := range items {
		if r.IntersectsAABB(bounds) {
			ids = append(ids, id)
		}
	}
	return ids
}

func TestNodeQueryRange(t *testing.T) {
	tree := newTestTree(t, WithCapacity(2))
	require.True(t, tree.Insert("a", point(-50, -50)))
	require.True(t, tree.Insert("b", point(50, 50)))
	require.True(t, tree.Insert("c", point(55, 55)))
	require.True(t, tree.Insert("d", box(-10, 40, 5, 5)))

	t.Run("retrieve points within a rectangular range", func(t *testing.T) {
		require.ElementsMatch(t, []string{"b", "c"}, queryIDs(tree, box(50, 50, 10, 10)))
		require.ElementsMatch(t, []string{"a"}, queryIDs(tree, box(-60, -60, 10, 10)))
	})

	t.Run("retrieve points within a circular range", func(t *testing.T) {
		c := geometry.NewCircle(geometry.NewVector2(50, 50), 5)
		require.ElementsMatch(t, []string{"b"}, queryIDs(tree, c))

		c = geometry.NewCircle(geometry.NewVector2(50, 50), 8)
		require.ElementsMatch(t, []string{"b", "c"}, queryIDs(tree, c))
	})

	t.Run("retrieve boxes intersecting a range", func(t *testing.T) {
		require.ElementsMatch(t, []string{"d"}, queryIDs(tree, point(-5, 45)))
		require.ElementsMatch(t, []string{"d"}, queryIDs(tree, geometry.NewCircle(geometry.NewVector2(0, 40), 5)))
	})

	t.Run("ranges outside the tree return nothing", func(t *testing.T) {
		require.Empty(t, tree.QueryRange(box(500, 500, 10, 10)))
	})

	t.Run("results carry the item bounds", func(t *testing.T) {
		items := tree.QueryRange(point(-5, 45))
		require.Len(t, items, 1)
		require.Equal(t, box(-10, 40, 5, 5), items[0].Bounds)
	})
}

func TestNodeQueryRangeFunc(t *testing.T) {
	tree := newTestTree(t, WithCapacity(1))
	for i := 0; i < 20; i++ {
		require.True(t, tree.Insert(fmt.Sprint(i), point(float64(i*5-50), 0)))
	}

	t.Run("walk is stopped", func(t *testing.T) {
		var calls int
		completed := tree.QueryRangeFunc(tree.Region(), func(id string, bounds geometry.AABB) bool {
			calls++
			return false
		})
		require.False(t, completed)
		require.Equal(t, 1, calls)
	})

	t.Run("walk is completed", func(t *testing.T) {
		var calls int
		completed := tree.QueryRangeFunc(tree.Region(), func(id string, bounds geometry.AABB) bool {
			calls++
			return true
		})
		require.True(t, completed)
		require.Equal(t, 20, calls)
	})
}

func TestNodeQueryRangeMatchesBruteForce(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	t.Run("points", func(t *testing.T) {
		tree := newTestTree(t, WithCapacity(4), WithMinSize(0.5))
		items := make(map[string]geometry.AABB)
		for i := 0; i < 1000; i++ {
			id := fmt.Sprintf("p%d", i)
			items[id] = geometry.PointAABB(randomPoint(rnd, 100))
			require.True(t, tree.Insert(id, items[id]))
		}

		for i := 0; i < 200; i++ {
			r := randomRange(rnd, 100)
			require.ElementsMatch(t, bruteForce(items, r), queryIDs(tree, r), "range %v", r.Bounds())
		}
	})

	t.Run("boxes", func(t *testing.T) {
		tree := newTestTree(t, WithCapacity(3), WithMinSize(2))
		items := make(map[string]geometry.AABB)
		for i := 0; i < 500; i++ {
			id := fmt.Sprintf("b%d", i)
			bounds := geometry.NewAABB(randomPoint(rnd, 80), geometry.NewVector2(rnd.Float64()*20, rnd.Float64()*20))
			items[id] = bounds
			require.True(t, tree.Insert(id, bounds))
		}

		info := tree.DebugInfo()
		require.NotZero(t, info.SpanningItemCount)
		require.Equal(t, len(items), info.ItemCount)

		for i := 0; i < 200; i++ {
			r := randomRange(rnd, 100)
			require.ElementsMatch(t, bruteForce(items, r), queryIDs(tree, r), "range %v", r.Bounds())
		}
	})

	t.Run("after removals", func(t *testing.T) {
		tree := newTestTree(t, WithCapacity(2))
		items := make(map[string]geometry.AABB)
		for i := 0; i < 300; i++ {
			id := fmt.Sprintf("r%d", i)
			items[id] = geometry.PointAABB(randomPoint(rnd, 100))
			require.True(t, tree.Insert(id, items[id]))
		}
		for i := 0; i < 300; i += 3 {
			id := fmt.Sprintf("r%d", i)
			require.True(t, tree.Remove(id))
			delete(items, id)
		}
		require.Equal(t, len(items), tree.Len())

		for i := 0; i < 100; i++ {
			r := randomRange(rnd, 100)
			require.ElementsMatch(t, bruteForce(items, r), queryIDs(tree, r))
		}
	})
}

func TestNodeLargeQuery(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	tree := newTestTree(t, WithCapacity(16), WithMinSize(0.01))

	const count = 20000
	for i := 0; i < count; i++ {
		require.True(t, tree.Insert(fmt.Sprint(i), geometry.PointAABB(randomPoint(rnd, 100))))
	}

	items := tree.QueryRange(tree.Region())
	require.Len(t, items, count)

	seen := make(map[string]struct{}, count)
	for _, item := range items {
		_, duplicate := seen[item.ID]
		require.False(t, duplicate, "duplicate id %s", item.ID)
		seen[item.ID] = struct{}{}
	}
}

func BenchmarkNodeInsert(b *testing.B) {
	rnd := rand.New(rand.NewSource(1))
	tree, _ := New[int](box(0, 0, 1000, 1000), WithCapacity(16))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tree.Insert(i, geometry.PointAABB(randomPoint(rnd, 1000)))
	}
}

func BenchmarkNodeQueryRange(b *testing.B) {
	rnd := rand.New(rand.NewSource(1))
	tree, _ := New[int](box(0, 0, 1000, 1000), WithCapacity(16))
	for i := 0; i < 100000; i++ {
		tree.Insert(i, geometry.PointAABB(randomPoint(rnd, 1000)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tree.QueryRange(geometry.NewCircle(randomPoint(rnd, 1000), 50))
	}
}
