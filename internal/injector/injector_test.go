package injector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/warden/internal/core/detection"
	"github.com/zeusync/warden/internal/core/observability/metrics"
	"github.com/zeusync/warden/internal/core/sequence"
)

func TestInitializeEngine(t *testing.T) {
	t.Setenv("WARDEN_LOG__LEVEL", "silent")
	clock := sequence.NewManualClock(0)
	resolver := detection.ResolverFunc(func(context.Context, detection.Report) error { return nil })

	engine, cleanup, err := InitializeEngine("", clock, resolver)
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, engine.Manager)
	require.Same(t, clock, engine.Manager.Clock())
	require.Same(t, engine.Bus, engine.Manager.Bus())
	require.IsType(t, &metrics.Prometheus{}, engine.Metrics)
	require.Equal(t, "silent", engine.Config.Log.Level)
}

func TestInitializeEngineInvalidConfig(t *testing.T) {
	t.Setenv("WARDEN_ENGINE__WORKERS", "0")
	_, _, err := InitializeEngine("", sequence.NewManualClock(0), nil)
	require.Error(t, err)
}
