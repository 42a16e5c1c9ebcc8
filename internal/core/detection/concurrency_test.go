package detection

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/warden/internal/core/entry"
	"github.com/zeusync/warden/internal/core/events/bus"
	"github.com/zeusync/warden/internal/core/sequence"
)

// gatedWorld holds the first lookup until release is closed.
type gatedWorld struct {
	*entry.MemoryWorld
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedWorld() *gatedWorld {
	return &gatedWorld{
		MemoryWorld: entry.NewMemoryWorld("gated"),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (w *gatedWorld) Lookup(id uuid.UUID) (any, bool) {
	w.once.Do(func() {
		close(w.entered)
		<-w.release
	})
	return w.MemoryWorld.Lookup(id)
}

func (w *gatedWorld) spawn() entry.Entry {
	id := uuid.New()
	w.Put(id, struct{}{})
	return entry.New(id, w)
}

func TestUnregisterDuringDispatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.manager.Register(newSpy("combo", instantChain)))

	w := newGatedWorld()
	e := w.spawn()

	errc := make(chan error, 1)
	go func() { errc <- f.manager.Dispatch(ctx, moved{}, e) }()
	<-w.entered
	require.NoError(t, f.manager.Unregister("combo"))
	close(w.release)
	require.NoError(t, <-errc)

	require.Empty(t, f.manager.Active(e.UniqueID()), "no sequence outlives its registration")
	require.Zero(t, f.manager.Tracked())

	replacement := newSpy("combo", reachChain)
	require.NoError(t, f.manager.Register(replacement))
	require.NoError(t, f.manager.Dispatch(ctx, swung{Reach: 5}, e))
	require.Empty(t, replacement.Reports())
	require.Empty(t, f.Resolved())
}

func TestNotificationHandlersReenterManager(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.manager.Register(newSpy("combo", instantChain)))
	e := f.spawn()

	var (
		activeBefore int
		redispatch   error
		forgot       bool
	)
	_, err := f.bus.Subscribe(bus.TypeSequenceCompleted, func(bus.Event) error {
		activeBefore = len(f.manager.Active(e.UniqueID()))
		redispatch = f.manager.Dispatch(ctx, moved{}, e)
		forgot = f.manager.Forget(e.UniqueID())
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, f.manager.Dispatch(ctx, moved{}, e))

	done := make(chan error, 1)
	go func() { done <- f.manager.Dispatch(ctx, swung{}, e) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch blocked inside a completion handler")
	}

	assert.Zero(t, activeBefore)
	assert.NoError(t, redispatch)
	assert.True(t, forgot, "the handler's own dispatch started a sequence to forget")
	assert.Len(t, f.Notices(bus.TypeEntityForgotten), 1)
	assert.Empty(t, f.manager.Active(e.UniqueID()))
}

func TestSameEntitySerialized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var (
		inside   atomic.Bool
		overlaps atomic.Int32
		evals    int
	)
	first := sequence.NewAction[moved]().When(func(_ *sequence.Context, _ moved) bool {
		if !inside.CompareAndSwap(false, true) {
			overlaps.Add(1)
		}
		evals++
		time.Sleep(50 * time.Microsecond)
		inside.Store(false)
		return false
	})
	bp, err := sequence.NewBuilder().Then(first).Then(sequence.NewAction[swung]()).Build()
	require.NoError(t, err)
	require.NoError(t, f.manager.Register(newSpy("serial", func() *sequence.Blueprint { return bp })))

	e := f.spawn()
	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				assert.NoError(t, f.manager.Dispatch(ctx, moved{}, e))
			}
		}()
	}
	wg.Wait()

	require.Zero(t, overlaps.Load(), "events for one entity never interleave")
	require.Equal(t, workers*perWorker, evals)
}
