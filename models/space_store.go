package models

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadrant/geometry"
)

const (
	ErrTypeSpaceNotFound = "space_not_found"

	// The server id used in global space ids when none is configured.
	DefaultServerID = "local"
)

// SpaceStore keeps the spaces hosted by the server.
type SpaceStore struct {
	// The id of the server that is prefixed to global space ids.
	ServerID string

	// The options used to create spaces when fields are left zero.
	Defaults SpaceOptions

	initOnce sync.Once
	mutex    sync.RWMutex
	spaces   map[string]*Space
	ids      SequentialIDGenerator
}

func (s *SpaceStore) init() {
	s.spaces = map[string]*Space{}

	if s.ServerID == "" {
		s.ServerID = DefaultServerID
	}
}

func (s *SpaceStore) NewID() uint32 {
	return s.ids.New()
}

// Create creates a space and adds it to the store. Zero fields in opts are
// taken from the store defaults.
func (s *SpaceStore) Create(ctx context.Context, opts SpaceOptions) (*Space, error) {
	if opts.Region == (geometry.AABB{}) {
		opts.Region = s.Defaults.Region
	}
	if opts.Backend == "" {
		opts.Backend = s.Defaults.Backend
	}
	if opts.Capacity == 0 {
		opts.Capacity = s.Defaults.Capacity
	}
	if opts.MinSize == 0 {
		opts.MinSize = s.Defaults.MinSize
	}
	opts.StrictCapacity = opts.StrictCapacity || s.Defaults.StrictCapacity

	id := s.NewID()
	space, err := NewSpace(id, opts)
	if err != nil {
		s.ids.Release(id)
		return nil, err
	}

	if err := s.Add(ctx, space); err != nil {
		s.ids.Release(id)
		return nil, err
	}
	return space, nil
}

func (s *SpaceStore) Add(ctx context.Context, space *Space) error {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.spaces[s.GlobalSpaceID(space.ID)] = space

	instrumentIncreaseSpaceGauge(space.Backend)
	instrumentCountSpace(space.Backend)
	return nil
}

func (s *SpaceStore) Remove(ctx context.Context, space *Space) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	globalID := s.GlobalSpaceID(space.ID)
	if s.spaces[globalID] != space {
		return
	}

	delete(s.spaces, globalID)
	space.Clear()
	s.ids.Release(space.ID)

	instrumentDecreaseSpaceGauge(space.Backend)
}

func (s *SpaceStore) GetByGlobalID(v string) (*Space, bool) {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	space, ok := s.spaces[v]
	return space, ok
}

// Get is like GetByGlobalID but returns a typed error when the space does
// not exist.
func (s *SpaceStore) Get(globalID string) (*Space, error) {
	space, ok := s.GetByGlobalID(globalID)
	if !ok {
		return nil, errors.New("space not found").
			WithType(ErrTypeSpaceNotFound).
			WithTag("space_id", globalID)
	}
	return space, nil
}

// Spaces returns the hosted spaces ordered by id.
func (s *SpaceStore) Spaces() []*Space {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	spaces := make([]*Space, 0, len(s.spaces))
	for _, space := range s.spaces {
		spaces = append(spaces, space)
	}

	sort.Slice(spaces, func(i, j int) bool {
		return spaces[i].ID < spaces[j].ID
	})
	return spaces
}

func (s *SpaceStore) GlobalSpaceID(spaceID uint32) string {
	s.initOnce.Do(s.init)
	return fmt.Sprintf("%sx%x", s.ServerID, spaceID)
}
