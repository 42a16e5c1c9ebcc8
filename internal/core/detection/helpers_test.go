package detection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zeusync/warden/internal/core/entry"
	"github.com/zeusync/warden/internal/core/events"
	"github.com/zeusync/warden/internal/core/events/bus"
	"github.com/zeusync/warden/internal/core/observability/log"
	"github.com/zeusync/warden/internal/core/sequence"
)

type moved struct {
	Y        float64
	Grounded bool
}

func (moved) Kind() events.Kind { return "test.moved" }

type swung struct {
	Reach float64
}

func (swung) Kind() events.Kind { return "test.swung" }

// spy is a module that records everything the manager does to it.
type spy struct {
	BaseModule

	mu      sync.Mutex
	hooks   []string
	reports []Report

	build   func() *sequence.Blueprint
	loadErr error
}

func newSpy(id string, build func() *sequence.Blueprint) *spy {
	p := &spy{BaseModule: NewBaseModule(id, "spy "+id, "1.0.0", nil), build: build}
	p.SetBlueprint(build())
	return p
}

func (p *spy) record(hook string) {
	p.mu.Lock()
	p.hooks = append(p.hooks, hook)
	p.mu.Unlock()
}

func (p *spy) OnConstruction() error {
	p.record("construct")
	return nil
}

func (p *spy) OnLoad() error {
	p.record("load")
	return p.loadErr
}

func (p *spy) OnRegister(*Manager) error {
	p.record("register")
	return nil
}

func (p *spy) OnDeconstruction() error {
	p.record("deconstruct")
	return nil
}

func (p *spy) OnComplete(_ context.Context, r Report) {
	p.mu.Lock()
	p.reports = append(p.reports, r)
	p.mu.Unlock()
}

func (p *spy) Hooks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.hooks...)
}

func (p *spy) Reports() []Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Report(nil), p.reports...)
}

// reachChain is [moved airborne (0s..5s), swung with reach > 3 (2s..10s)].
func reachChain() *sequence.Blueprint {
	a1 := sequence.NewAction[moved]().Window(0, 5*time.Second).
		When(func(_ *sequence.Context, e moved) bool { return !e.Grounded })
	a2 := sequence.NewAction[swung]().Window(2*time.Second, 10*time.Second).
		When(func(_ *sequence.Context, e swung) bool { return e.Reach > 3 })
	bp, err := sequence.NewBuilder().Then(a1).Then(a2).Build()
	if err != nil {
		panic(err)
	}
	return bp
}

// instantChain completes on any moved followed by any swung, with no timing bounds.
func instantChain() *sequence.Blueprint {
	bp, err := sequence.NewBuilder().
		Then(sequence.NewAction[moved]()).
		Then(sequence.NewAction[swung]()).
		Build()
	if err != nil {
		panic(err)
	}
	return bp
}

type fixture struct {
	manager *Manager
	clock   *sequence.ManualClock
	world   *entry.MemoryWorld
	bus     bus.EventBus

	mu       sync.Mutex
	notices  map[string][]bus.Event
	resolved []Report
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		clock:   sequence.NewManualClock(0),
		world:   entry.NewMemoryWorld("overworld"),
		bus:     bus.New(),
		notices: make(map[string][]bus.Event),
	}
	_, err := f.bus.SubscribeAll(func(ev bus.Event) error {
		f.mu.Lock()
		f.notices[ev.Type()] = append(f.notices[ev.Type()], ev)
		f.mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	resolver := ResolverFunc(func(_ context.Context, r Report) error {
		f.mu.Lock()
		f.resolved = append(f.resolved, r)
		f.mu.Unlock()
		return nil
	})
	base := []Option{
		WithLogger(log.Wrap(zaptest.NewLogger(t))),
		WithClock(f.clock),
		WithBus(f.bus),
		WithResolver(resolver),
	}
	f.manager = NewManager(Config{Shards: 4, Workers: 4}, append(base, opts...)...)
	t.Cleanup(func() { _ = f.manager.Close() })
	return f
}

func (f *fixture) spawn() entry.Entry {
	return f.world.Put(uuid.New(), struct{}{})
}

func (f *fixture) at(t time.Duration) {
	f.clock.Set(t)
}

func (f *fixture) Notices(typ string) []bus.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bus.Event(nil), f.notices[typ]...)
}

func (f *fixture) Resolved() []Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Report(nil), f.resolved...)
}

func (f *fixture) Resets(t *testing.T) []ResetNotice {
	t.Helper()
	var out []ResetNotice
	for _, ev := range f.Notices(bus.TypeSequenceReset) {
		n, ok := bus.Payload[ResetNotice](ev)
		require.True(t, ok, "reset notice payload")
		out = append(out, n)
	}
	return out
}
