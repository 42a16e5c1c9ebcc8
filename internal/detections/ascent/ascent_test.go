package ascent

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zeusync/warden/internal/core/detection"
	"github.com/zeusync/warden/internal/core/entry"
	"github.com/zeusync/warden/internal/core/observability/log"
	"github.com/zeusync/warden/internal/core/sequence"
	"github.com/zeusync/warden/internal/game"
)

type harness struct {
	manager *detection.Manager
	clock   *sequence.ManualClock
	world   *entry.MemoryWorld
	ascent  *Detection
}

func newHarness(t *testing.T, cfg detection.Configuration) *harness {
	t.Helper()
	logger := log.Wrap(zaptest.NewLogger(t))
	h := &harness{
		clock: sequence.NewManualClock(0),
		world: entry.NewMemoryWorld("overworld"),
	}
	h.manager = detection.NewManager(detection.DefaultConfig(),
		detection.WithLogger(logger),
		detection.WithClock(h.clock),
	)
	h.ascent = New(cfg, logger)
	require.NoError(t, h.manager.Install(h.ascent))
	t.Cleanup(func() { require.NoError(t, h.manager.Close()) })
	return h
}

func (h *harness) spawn(canFly bool) entry.Entry {
	id := uuid.New()
	return h.world.Put(id, &game.Player{ID: id, Name: "p-" + id.String()[:4], CanFly: canFly})
}

// path replays moves through ys, one every 50ms.
func (h *harness) path(t *testing.T, e entry.Entry, onGround bool, ys ...float64) {
	t.Helper()
	for i := 1; i < len(ys); i++ {
		h.clock.Advance(50 * time.Millisecond)
		mv := game.Move{From: game.Vec3{Y: ys[i-1]}, To: game.Vec3{Y: ys[i]}, OnGround: onGround}
		require.NoError(t, h.manager.Dispatch(context.Background(), mv, e))
	}
}

func TestFlagsSustainedClimb(t *testing.T) {
	h := newHarness(t, nil)
	p := h.spawn(false)

	h.path(t, p, false, 64, 64.6, 65.2, 65.8)
	require.Equal(t, int64(1), h.ascent.Flagged())
}

func TestIgnoresJump(t *testing.T) {
	h := newHarness(t, nil)
	p := h.spawn(false)

	h.path(t, p, false, 64, 64.42, 64.75, 65.0, 64.9)
	require.Zero(t, h.ascent.Flagged())
}

func TestIgnoresFlyingPlayers(t *testing.T) {
	h := newHarness(t, nil)
	p := h.spawn(true)

	h.path(t, p, false, 64, 65, 66, 67, 68)
	require.Zero(t, h.ascent.Flagged())
}

func TestGroundContactResets(t *testing.T) {
	h := newHarness(t, nil)
	p := h.spawn(false)

	h.path(t, p, false, 64, 64.6, 65.2)
	h.path(t, p, true, 65.2, 65.2)
	require.Empty(t, h.manager.Active(p.UniqueID()))
	h.path(t, p, false, 65.2, 65.8)
	require.Zero(t, h.ascent.Flagged())
}

func TestSlowClimbExpires(t *testing.T) {
	h := newHarness(t, nil)
	p := h.spawn(false)
	ctx := context.Background()

	rise := func(from, to float64) {
		require.NoError(t, h.manager.Dispatch(ctx, game.Move{From: game.Vec3{Y: from}, To: game.Vec3{Y: to}}, p))
	}
	rise(64, 64.6)
	h.clock.Advance(time.Second)
	rise(64.6, 65.2)
	h.clock.Advance(time.Second)
	rise(65.2, 65.8)
	require.Zero(t, h.ascent.Flagged())
}

func TestTunables(t *testing.T) {
	cfg, err := detection.ParseYAML([]byte("max_rise: 3\nwindow: 2s\n"))
	require.NoError(t, err)
	h := newHarness(t, cfg)

	require.Equal(t, Tunables{MaxRise: 3, Window: 2 * time.Second}, h.ascent.Tunables())

	p := h.spawn(false)
	h.path(t, p, false, 64, 64.6, 65.2, 65.8)
	require.Zero(t, h.ascent.Flagged(), "1.8 blocks is within a 3 block allowance")
}

func TestInvalidTunables(t *testing.T) {
	cfg, err := detection.ParseYAML([]byte("max_rise: -1\n"))
	require.NoError(t, err)

	m := detection.NewManager(detection.DefaultConfig())
	defer m.Close()
	err = m.Install(New(cfg, nil))
	require.ErrorContains(t, err, "max_rise")
	require.Empty(t, m.Detections())
}
