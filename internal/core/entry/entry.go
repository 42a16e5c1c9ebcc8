// Package entry provides id-based references to live host entities that may vanish at any time.
package entry

import (
	"sync"

	"github.com/google/uuid"
)

// World is the host-side lookup an Entry resolves through.
type World interface {
	// Name identifies the host world, e.g. a dimension or shard name.
	Name() string
	// Lookup returns the live entity for id, or false once it has left the world.
	Lookup(id uuid.UUID) (any, bool)
}

// Entry refers to an entity by its unique id. It never holds the entity itself:
// every Resolve goes back to the World.
type Entry struct {
	id    uuid.UUID
	world World
}

func New(id uuid.UUID, world World) Entry {
	return Entry{id: id, world: world}
}

func (e Entry) UniqueID() uuid.UUID { return e.id }

func (e Entry) World() World { return e.world }

// Present reports whether the entity currently resolves to anything.
func (e Entry) Present() bool {
	if e.world == nil {
		return false
	}
	_, ok := e.world.Lookup(e.id)
	return ok
}

func (e Entry) String() string { return e.id.String() }

// Resolve looks the entity up and asserts it to E. Absent entities and entities of a
// different type both report false.
func Resolve[E any](e Entry) (E, bool) {
	var zero E
	if e.world == nil {
		return zero, false
	}
	v, ok := e.world.Lookup(e.id)
	if !ok {
		return zero, false
	}
	typed, ok := v.(E)
	if !ok {
		return zero, false
	}
	return typed, true
}

// MemoryWorld is a concurrent map-backed World for harnesses and tests.
type MemoryWorld struct {
	name     string
	entities sync.Map // map[uuid.UUID]any
}

var _ World = (*MemoryWorld)(nil)

func NewMemoryWorld(name string) *MemoryWorld {
	return &MemoryWorld{name: name}
}

func (w *MemoryWorld) Name() string { return w.name }

func (w *MemoryWorld) Lookup(id uuid.UUID) (any, bool) {
	return w.entities.Load(id)
}

// Put stores or replaces the entity under id and returns an Entry for it.
func (w *MemoryWorld) Put(id uuid.UUID, entity any) Entry {
	w.entities.Store(id, entity)
	return New(id, w)
}

func (w *MemoryWorld) Remove(id uuid.UUID) {
	w.entities.Delete(id)
}
