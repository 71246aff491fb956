package models

import (
	"slices"
	"sync"
)

// A sequential id generator. Released ids are handed out again, lowest
// first, before new ones are created.
type SequentialIDGenerator struct {
	mutex    sync.Mutex
	current  uint32
	released []uint32
}

// New returns a sequential id.
func (g *SequentialIDGenerator) New() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if len(g.released) != 0 {
		id := g.released[0]
		g.released = g.released[1:]
		return id
	}

	g.current++
	return g.current
}

// Release marks the given id as reusable. Ids that were never returned by New
// are ignored.
func (g *SequentialIDGenerator) Release(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if id == 0 || id > g.current {
		return
	}

	i, found := slices.BinarySearch(g.released, id)
	if found {
		return
	}
	g.released = slices.Insert(g.released, i, id)
}
