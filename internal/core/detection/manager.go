package detection

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/warden/internal/core/events"
	"github.com/zeusync/warden/internal/core/events/bus"
	"github.com/zeusync/warden/internal/core/observability/log"
	"github.com/zeusync/warden/internal/core/observability/metrics"
	"github.com/zeusync/warden/internal/core/sequence"
)

const source = "detection.manager"

// Config sizes the manager's entity table and worker pool.
type Config struct {
	Shards   int           `koanf:"shards" yaml:"shards" validate:"gt=0"`
	Workers  int           `koanf:"workers" yaml:"workers" validate:"gt=0"`
	Resolver BreakerConfig `koanf:"resolver" yaml:"resolver"`
}

func DefaultConfig() Config {
	return Config{
		Shards:   64,
		Workers:  8,
		Resolver: BreakerConfig{MaxFailures: 5, Cooldown: 30 * time.Second},
	}
}

// Option customises a Manager.
type Option func(*Manager)

func WithLogger(l log.Log) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.metrics = r
		}
	}
}

func WithBus(b bus.EventBus) Option {
	return func(m *Manager) {
		if b != nil {
			m.bus = b
		}
	}
}

// WithResolver sets the collaborator receiving completed reports. Nil keeps the no-op resolver.
func WithResolver(r Resolver) Option {
	return func(m *Manager) {
		if r != nil {
			m.resolver = r
		}
	}
}

func WithClock(c sequence.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// Manager is the shared registry of active detections. It owns no sequence logic: it routes
// every event to the detections interested in its kind and drives the entity's sequence for each.
//
// Events for one entity are serialized; events for different entities may be dispatched from
// any number of goroutines.
type Manager struct {
	mu            sync.RWMutex
	registrations map[string]*registration
	byKind        map[events.Kind][]*registration
	order         uint64

	shards  []*shard
	workers int
	closed  atomic.Bool

	log      log.Log
	metrics  metrics.Recorder
	bus      bus.EventBus
	resolver Resolver
	clock    sequence.Clock
}

type registration struct {
	detection Detection
	module    Module
	lifecycle *Lifecycle
	order     uint64
}

func (r *registration) id() string { return r.detection.ID() }

// ResetNotice is the payload of bus.TypeSequenceReset notifications.
type ResetNotice struct {
	Detection string
	Entity    uuid.UUID
	Step      int
	Reason    string
}

func NewManager(cfg Config, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.Shards <= 0 {
		cfg.Shards = def.Shards
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}

	m := &Manager{
		registrations: make(map[string]*registration),
		byKind:        make(map[events.Kind][]*registration),
		shards:        make([]*shard, cfg.Shards),
		workers:       cfg.Workers,
		log:           log.NewNop(),
		metrics:       metrics.Nop{},
		bus:           bus.New(),
		resolver:      nopResolver{},
		clock:         sequence.NewMonotonicClock(),
	}
	for i := range m.shards {
		m.shards[i] = &shard{entities: make(map[uuid.UUID]*tracked)}
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.Named(source)
	if _, nop := m.resolver.(nopResolver); !nop && cfg.Resolver.MaxFailures > 0 {
		m.resolver = NewBreaker(m.resolver, cfg.Resolver, m.log)
	}
	return m
}

// Bus is where the manager publishes sequence notifications. Handlers run after the entity they
// concern has been unlocked, so they may dispatch to or query that entity.
func (m *Manager) Bus() bus.EventBus { return m.bus }

// Clock is the engine clock used to time actions.
func (m *Manager) Clock() sequence.Clock { return m.clock }

// Register adds d. A second registration of the same ID is rejected and leaves the first intact.
func (m *Manager) Register(d Detection) error {
	return m.register(d, nil, nil)
}

func (m *Manager) register(d Detection, mod Module, lc *Lifecycle) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}
	if d == nil || d.ID() == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDetection)
	}
	bp := d.Blueprint()
	if bp == nil {
		return fmt.Errorf("%w: %s has no blueprint", ErrInvalidDetection, d.ID())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.registrations[d.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDetection, d.ID())
	}
	m.order++
	reg := &registration{detection: d, module: mod, lifecycle: lc, order: m.order}
	m.registrations[d.ID()] = reg
	for _, kind := range bp.Kinds() {
		m.byKind[kind] = append(m.byKind[kind], reg)
	}

	m.log.Info("detection registered",
		log.String("detection", d.ID()),
		log.String("name", d.Name()),
		log.String("version", d.Version()),
		log.Int("steps", bp.Len()),
	)
	return nil
}

// Unregister removes the detection and drops its in-flight sequences. Module hooks are not run;
// use Uninstall for modules.
func (m *Manager) Unregister(id string) error {
	if _, err := m.unregister(id); err != nil {
		return err
	}
	return nil
}

func (m *Manager) unregister(id string) (*registration, error) {
	m.mu.Lock()
	reg, ok := m.registrations[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDetectionNotFound, id)
	}
	delete(m.registrations, id)
	for kind, regs := range m.byKind {
		kept := regs[:0:0]
		for _, r := range regs {
			if r != reg {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(m.byKind, kind)
		} else {
			m.byKind[kind] = kept
		}
	}
	m.mu.Unlock()

	dropped := 0
	m.eachTracked(func(t *tracked) {
		if inst, ok := t.sequences[id]; ok && inst.reg == reg {
			if inst.seq.State() == sequence.StateActive {
				dropped++
			}
			delete(t.sequences, id)
		}
	})
	if dropped > 0 {
		m.metrics.ActiveSequences(-dropped)
	}

	m.log.Info("detection unregistered", log.String("detection", id), log.Int("dropped", dropped))
	return reg, nil
}

// Install drives mod through construction, load and registration. If any stage fails, a module
// that got past construction is deconstructed before the error is returned.
func (m *Manager) Install(mod Module) error {
	if mod == nil {
		return fmt.Errorf("%w: nil module", ErrInvalidDetection)
	}
	lc := NewLifecycle()
	err := lc.Construct(mod.OnConstruction)
	if err == nil {
		err = lc.Load(mod.OnLoad)
	}
	registered := false
	if err == nil {
		err = lc.Register(func() error {
			if err := m.register(mod, mod, lc); err != nil {
				return err
			}
			registered = true
			return mod.OnRegister(m)
		})
	}
	if err == nil {
		return nil
	}

	if registered {
		_, _ = m.unregister(mod.ID())
	}
	if lc.Stage() != StageNew {
		if derr := lc.Deconstruct(mod.OnDeconstruction); derr != nil {
			err = errors.Join(err, derr)
		}
	}
	m.log.Error("detection install failed", log.String("detection", mod.ID()), log.Error(err))
	return fmt.Errorf("install %s: %w", mod.ID(), err)
}

// Uninstall unregisters an installed module and runs its deconstruction hook.
func (m *Manager) Uninstall(id string) error {
	reg, err := m.unregister(id)
	if err != nil {
		return err
	}
	if reg.lifecycle == nil {
		return nil
	}
	if err := reg.lifecycle.Deconstruct(reg.module.OnDeconstruction); err != nil {
		return fmt.Errorf("uninstall %s: %w", id, err)
	}
	return nil
}

func (m *Manager) Detection(id string) (Detection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.registrations[id]
	if !ok {
		return nil, false
	}
	return reg.detection, true
}

// Detections lists registered detections sorted by ID.
func (m *Manager) Detections() []Detection {
	m.mu.RLock()
	out := make([]Detection, 0, len(m.registrations))
	for _, reg := range m.registrations {
		out = append(out, reg.detection)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Close rejects further work, uninstalls every detection in reverse registration order and
// discards all entity state.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	m.mu.RLock()
	regs := make([]*registration, 0, len(m.registrations))
	for _, reg := range m.registrations {
		regs = append(regs, reg)
	}
	m.mu.RUnlock()
	sort.Slice(regs, func(i, j int) bool { return regs[i].order > regs[j].order })

	var errs []error
	for _, reg := range regs {
		if err := m.Uninstall(reg.id()); err != nil {
			errs = append(errs, err)
		}
	}
	for _, sh := range m.shards {
		for _, t := range sh.snapshot() {
			t.mu.Lock()
			m.dropLocked(sh, t)
			t.mu.Unlock()
		}
	}
	m.log.Info("detection manager closed", log.Int("detections", len(regs)))
	return errors.Join(errs...)
}

// current reports whether reg is still the live registration of its id.
func (m *Manager) current(reg *registration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registrations[reg.id()] == reg
}

func (m *Manager) interested(kind events.Kind) []*registration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	regs := m.byKind[kind]
	if len(regs) == 0 {
		return nil
	}
	return append([]*registration(nil), regs...)
}
