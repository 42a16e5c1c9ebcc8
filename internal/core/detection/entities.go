package detection

import (
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/zeusync/warden/internal/core/entry"
	"github.com/zeusync/warden/internal/core/events/bus"
	"github.com/zeusync/warden/internal/core/observability/log"
	"github.com/zeusync/warden/internal/core/observability/metrics"
	"github.com/zeusync/warden/internal/core/sequence"
)

type shard struct {
	mu       sync.Mutex
	entities map[uuid.UUID]*tracked
}

// tracked is the per-entity state. mu is held for the whole processing of one event.
// Notifications raised meanwhile wait in outbox and are published once mu is released.
type tracked struct {
	mu        sync.Mutex
	entry     entry.Entry
	sequences map[string]instance
	outbox    []bus.Event
	removed   bool
}

// instance is a sequence together with the registration that created it.
type instance struct {
	reg *registration
	seq *sequence.Sequence
}

// post queues a notification until t is unlocked. t.mu is held.
func (t *tracked) post(typ string, data any) {
	t.outbox = append(t.outbox, bus.NewEvent(typ, source, data))
}

// Progress is a read-only view of one in-flight sequence.
type Progress struct {
	Detection      string
	State          sequence.State
	Cursor         int
	Steps          int
	StartedAt      time.Duration
	LastActionTime time.Duration
}

// Forget drops every sequence of entity id. It reports whether the entity was tracked.
func (m *Manager) Forget(id uuid.UUID) bool {
	sh := m.shardFor(id)
	sh.mu.Lock()
	t, ok := sh.entities[id]
	sh.mu.Unlock()
	if !ok {
		return false
	}

	t.mu.Lock()
	defer m.unlock(t)
	if t.removed {
		return false
	}
	m.teardownLocked(sh, t)
	return true
}

// Active lists the in-flight sequences of entity id sorted by detection.
func (m *Manager) Active(id uuid.UUID) []Progress {
	sh := m.shardFor(id)
	sh.mu.Lock()
	t, ok := sh.entities[id]
	sh.mu.Unlock()
	if !ok {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Progress, 0, len(t.sequences))
	for det, inst := range t.sequences {
		s := inst.seq
		if s.State() != sequence.StateActive {
			continue
		}
		out = append(out, Progress{
			Detection:      det,
			State:          s.State(),
			Cursor:         s.Cursor(),
			Steps:          s.Len(),
			StartedAt:      s.StartedAt(),
			LastActionTime: s.LastActionTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Detection < out[j].Detection })
	return out
}

// Tracked counts entities with sequence state.
func (m *Manager) Tracked() int {
	n := 0
	for _, sh := range m.shards {
		sh.mu.Lock()
		n += len(sh.entities)
		sh.mu.Unlock()
	}
	return n
}

// teardownLocked removes t from sh. t.mu is held.
func (m *Manager) teardownLocked(sh *shard, t *tracked) {
	active := 0
	for det, inst := range t.sequences {
		if inst.seq.State() == sequence.StateActive {
			active++
			m.metrics.SequenceReset(det, metrics.ReasonUnresolved)
		}
	}
	if active > 0 {
		m.metrics.ActiveSequences(-active)
	}
	t.sequences = make(map[string]instance)
	m.dropLocked(sh, t)

	m.log.Debug("entity forgotten", log.UUID("entity", t.entry.UniqueID()), log.Int("active", active))
	t.post(bus.TypeEntityForgotten, t.entry.UniqueID())
}

// acquire returns e's state with its lock held, creating it when needed.
func (m *Manager) acquire(e entry.Entry) *tracked {
	id := e.UniqueID()
	sh := m.shardFor(id)
	for {
		sh.mu.Lock()
		t, ok := sh.entities[id]
		if !ok {
			t = &tracked{entry: e, sequences: make(map[string]instance)}
			sh.entities[id] = t
		}
		sh.mu.Unlock()

		t.mu.Lock()
		if !t.removed {
			return t
		}
		t.mu.Unlock()
	}
}

// release unlocks t, dropping it first when no sequence is left.
func (m *Manager) release(t *tracked) {
	if len(t.sequences) == 0 {
		m.dropLocked(m.shardFor(t.entry.UniqueID()), t)
	}
	m.unlock(t)
}

// unlock releases t.mu and then publishes what was posted while it was held, so bus handlers
// may call back into the manager for the same entity.
func (m *Manager) unlock(t *tracked) {
	outbox := t.outbox
	t.outbox = nil
	t.mu.Unlock()
	for _, ev := range outbox {
		m.publish(ev)
	}
}

// dropLocked unlinks t from sh. Locks are always taken entity first, then shard.
func (m *Manager) dropLocked(sh *shard, t *tracked) {
	if t.removed {
		return
	}
	t.removed = true
	sh.mu.Lock()
	if sh.entities[t.entry.UniqueID()] == t {
		delete(sh.entities, t.entry.UniqueID())
	}
	sh.mu.Unlock()
}

func (m *Manager) eachTracked(fn func(t *tracked)) {
	for _, sh := range m.shards {
		for _, t := range sh.snapshot() {
			t.mu.Lock()
			if !t.removed {
				fn(t)
			}
			t.mu.Unlock()
		}
	}
}

func (m *Manager) shardFor(id uuid.UUID) *shard {
	return m.shards[xxhash.Sum64(id[:])%uint64(len(m.shards))]
}

func (s *shard) snapshot() []*tracked {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*tracked, 0, len(s.entities))
	for _, t := range s.entities {
		out = append(out, t)
	}
	return out
}
