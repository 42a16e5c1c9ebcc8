package capture

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// GameReference identifies the host world handle a registry belongs to.
type GameReference struct {
	World  string
	Entity uuid.UUID
}

// Registry is the per-entity scratchpad shared by all conditions of one sequence.
// Reads of keys that were never written fall back to the registered defaults; anything else
// reads as absent.
type Registry struct {
	mu       sync.RWMutex
	ref      GameReference
	defaults map[KeyID]Value
	order    []KeyID
	values   map[KeyID]Value
}

func NewRegistry(ref GameReference, defaults ...Descriptor) *Registry {
	r := &Registry{
		ref:      ref,
		defaults: make(map[KeyID]Value, len(defaults)),
		order:    make([]KeyID, 0, len(defaults)),
		values:   make(map[KeyID]Value),
	}
	for _, d := range defaults {
		if _, dup := r.defaults[d.ID()]; dup {
			continue
		}
		r.defaults[d.ID()] = d.Default()
		r.order = append(r.order, d.ID())
	}
	return r
}

func (r *Registry) Reference() GameReference { return r.ref }

// Get returns the bound value, the default for a default key, or false.
func (r *Registry) Get(key Descriptor) (Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupLocked(key.ID())
}

// Set replaces the value under key and returns what was bound before, or the key's default.
func (r *Registry) Set(key Descriptor, value Value) Value {
	id := key.ID()
	value.key = id

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.lookupLocked(id)
	if !ok {
		prev = key.Default()
	}
	r.values[id] = value
	return prev
}

// Keys returns a sorted snapshot of every default and written key.
func (r *Registry) Keys() []KeyID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]KeyID, 0, len(r.defaults)+len(r.values))
	keys = append(keys, r.order...)
	for id := range r.values {
		if _, isDefault := r.defaults[id]; !isDefault {
			keys = append(keys, id)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Values returns a snapshot of the current value of every key in Keys order.
func (r *Registry) Values() []Value {
	keys := r.Keys()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Value, 0, len(keys))
	for _, id := range keys {
		if v, ok := r.lookupLocked(id); ok {
			out = append(out, v)
		}
	}
	return out
}

// DefaultKeys returns the keys fixed at construction, in declaration order.
func (r *Registry) DefaultKeys() []KeyID {
	out := make([]KeyID, len(r.order))
	copy(out, r.order)
	return out
}

// Snapshot copies the payloads of all keys into a plain map.
func (r *Registry) Snapshot() map[KeyID]any {
	values := r.Values()
	out := make(map[KeyID]any, len(values))
	for _, v := range values {
		out[v.key] = v.data
	}
	return out
}

// Reset discards every write. Defaults survive.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.values = make(map[KeyID]Value)
	r.mu.Unlock()
}

// Len counts written keys.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.values)
}

func (r *Registry) lookupLocked(id KeyID) (Value, bool) {
	if v, ok := r.values[id]; ok {
		return v, true
	}
	if v, ok := r.defaults[id]; ok {
		return v, true
	}
	return Value{}, false
}
