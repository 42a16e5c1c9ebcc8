package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/warden/internal/config"
	"github.com/zeusync/warden/internal/core/detection"
	"github.com/zeusync/warden/internal/core/events/bus"
	"github.com/zeusync/warden/internal/core/observability/log"
	"github.com/zeusync/warden/internal/core/observability/metrics"
	"github.com/zeusync/warden/internal/core/sequence"
)

// Engine bundles a configured detection manager with its collaborators.
type Engine struct {
	Config  *config.Config
	Logger  *log.Logger
	Metrics metrics.Recorder
	Bus     bus.EventBus
	Manager *detection.Manager
}

var EngineSet = wire.NewSet(
	config.Load,
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideRecorder,
	bus.New,
	ProvideManager,
	wire.Struct(new(Engine), "*"),
)

func ProvideLogger(cfg *config.Config) (*log.Logger, func(), error) {
	logger, err := log.Provide(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func ProvideRecorder(cfg *config.Config) metrics.Recorder {
	return metrics.Provide(cfg.Metrics)
}

func ProvideManager(
	cfg *config.Config,
	logger log.Log,
	recorder metrics.Recorder,
	eventBus bus.EventBus,
	resolver detection.Resolver,
	clock sequence.Clock,
) (*detection.Manager, func()) {
	m := detection.NewManager(cfg.Engine,
		detection.WithLogger(logger),
		detection.WithMetrics(recorder),
		detection.WithBus(eventBus),
		detection.WithResolver(resolver),
		detection.WithClock(clock),
	)
	return m, func() {
		if err := m.Close(); err != nil {
			logger.Error("detection manager close failed", log.Error(err))
		}
	}
}
