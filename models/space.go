package models

import (
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadrant/geometry"
	"github.com/aukilabs/quadrant/quadtree"
	"github.com/aukilabs/quadrant/rtree"
	"github.com/aukilabs/quadrant/spatial"
	"github.com/google/uuid"
)

const (
	ErrTypeInvalidSpace      = "invalid_space"
	ErrTypeInvalidBounds     = "invalid_bounds"
	ErrTypeItemExists        = "item_exists"
	ErrTypeItemNotFound      = "item_not_found"
	ErrTypeOutOfBounds       = "out_of_bounds"
	ErrTypeCapacityExhausted = "capacity_exhausted"
)

// Backend is the kind of spatial index a space is built on.
type Backend string

const (
	BackendQuadtree Backend = "quadtree"
	BackendRTree    Backend = "rtree"
)

// SpaceOptions describes how a space indexes its items.
type SpaceOptions struct {
	Name    string
	Region  geometry.AABB
	Backend Backend

	// Quadtree settings. Zero values fall back to the quadtree defaults.
	Capacity       int
	MinSize        float64
	StrictCapacity bool
}

// Space represents a named region where items are indexed by id.
type Space struct {
	ID        uint32
	SpaceUUID string
	Name      string
	Backend   Backend
	CreatedAt time.Time

	region geometry.AABB

	mutex sync.RWMutex
	index spatial.Index[string]
	items map[string]geometry.AABB
}

func NewSpace(id uint32, opts SpaceOptions) (*Space, error) {
	if opts.Backend == "" {
		opts.Backend = BackendQuadtree
	}

	index, err := newIndex(opts)
	if err != nil {
		return nil, errors.New("creating space index failed").
			WithType(ErrTypeInvalidSpace).
			WithTag("backend", opts.Backend).
			Wrap(err)
	}

	return &Space{
		ID:        id,
		SpaceUUID: uuid.New().String(),
		Name:      opts.Name,
		Backend:   opts.Backend,
		CreatedAt: time.Now(),
		region:    opts.Region,
		index:     index,
		items:     make(map[string]geometry.AABB),
	}, nil
}

func newIndex(opts SpaceOptions) (spatial.Index[string], error) {
	switch opts.Backend {
	case BackendQuadtree:
		var options []quadtree.Option
		if opts.Capacity != 0 {
			options = append(options, quadtree.WithCapacity(opts.Capacity))
		}
		if opts.MinSize != 0 {
			options = append(options, quadtree.WithMinSize(opts.MinSize))
		}
		if opts.StrictCapacity {
			options = append(options, quadtree.WithStrictCapacity())
		}
		return quadtree.New[string](opts.Region, options...)

	case BackendRTree:
		return rtree.New[string](opts.Region)

	default:
		return nil, errors.New("unknown backend").
			WithType(ErrTypeInvalidSpace).
			WithTag("backend", opts.Backend)
	}
}

// Region returns the area where items can be inserted.
func (s *Space) Region() geometry.AABB {
	return s.region
}

// Insert indexes an item. A random id is generated when id is empty. The id
// of the inserted item is returned.
func (s *Space) Insert(id string, bounds geometry.AABB) (string, error) {
	if !bounds.IsValid() {
		instrumentInsertRejection(s.Backend, ErrTypeInvalidBounds)
		return "", errors.New("invalid item bounds").
			WithType(ErrTypeInvalidBounds).
			WithTag("bounds", bounds.String())
	}

	if id == "" {
		id = uuid.New().String()
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.items[id]; ok {
		instrumentInsertRejection(s.Backend, ErrTypeItemExists)
		return "", errors.New("item already exists").
			WithType(ErrTypeItemExists).
			WithTag("item_id", id)
	}

	if err := s.insert(id, bounds); err != nil {
		return "", err
	}
	return id, nil
}

// Set inserts an item or moves it when it already exists. A moved item keeps
// its previous bounds when the new ones are refused. If the index refuses the
// previous bounds too, the item is removed and the returned error is tagged
// with item_removed.
func (s *Space) Set(id string, bounds geometry.AABB) error {
	if !bounds.IsValid() {
		instrumentInsertRejection(s.Backend, ErrTypeInvalidBounds)
		return errors.New("invalid item bounds").
			WithType(ErrTypeInvalidBounds).
			WithTag("bounds", bounds.String())
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	previous, exists := s.items[id]
	if exists {
		s.remove(id)
	}

	err := s.insert(id, bounds)
	if err == nil || !exists {
		return err
	}

	if rerr := s.insert(id, previous); rerr != nil {
		logs.WithTag("item_id", id).
			WithTag("backend", s.Backend).
			Warn(errors.New("restoring item bounds failed").Wrap(rerr))

		return errors.New("moving item failed").
			WithType(errors.Type(err)).
			WithTag("item_id", id).
			WithTag("item_removed", true).
			Wrap(err)
	}
	return err
}

func (s *Space) insert(id string, bounds geometry.AABB) error {
	if s.index.Insert(id, bounds) {
		s.items[id] = bounds
		instrumentIncreaseItemGauge(s.Backend)
		return nil
	}

	if !s.region.ContainsAABB(bounds) {
		instrumentInsertRejection(s.Backend, ErrTypeOutOfBounds)
		return errors.New("item is out of the space bounds").
			WithType(ErrTypeOutOfBounds).
			WithTag("item_id", id).
			WithTag("bounds", bounds.String()).
			WithTag("region", s.region.String())
	}

	instrumentInsertRejection(s.Backend, ErrTypeCapacityExhausted)
	return errors.New("no room left for item").
		WithType(ErrTypeCapacityExhausted).
		WithTag("item_id", id).
		WithTag("bounds", bounds.String())
}

func (s *Space) Remove(id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.items[id]; !ok {
		return errors.New("item not found").
			WithType(ErrTypeItemNotFound).
			WithTag("item_id", id)
	}

	s.remove(id)
	return nil
}

func (s *Space) remove(id string) {
	s.index.Remove(id)
	delete(s.items, id)
	instrumentDecreaseItemGauge(s.Backend)
}

// Item returns the bounds of the item with the given id.
func (s *Space) Item(id string) (geometry.AABB, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	bounds, ok := s.items[id]
	return bounds, ok
}

// Query returns the items intersecting r. When limit is greater than zero, at
// most limit items are returned and truncated reports whether more items
// matched.
func (s *Space) Query(r geometry.Range, limit int) (items []spatial.Item[string], truncated bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	items = []spatial.Item[string]{}
	s.index.QueryRangeFunc(r, func(id string, bounds geometry.AABB) bool {
		if limit > 0 && len(items) == limit {
			truncated = true
			return false
		}

		items = append(items, spatial.Item[string]{
			ID:     id,
			Bounds: bounds,
		})
		return true
	})

	instrumentQuery(s.Backend, len(items))
	return items, truncated
}

// Clear removes all the items and returns how many were removed.
func (s *Space) Clear() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	count := len(s.items)
	s.index.Clear()
	clear(s.items)
	instrumentSubItemGauge(s.Backend, count)
	return count
}

func (s *Space) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.items)
}

func (s *Space) DebugInfo() spatial.DebugInfo {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.index.DebugInfo()
}
