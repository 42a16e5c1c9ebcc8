//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/warden/internal/core/detection"
	"github.com/zeusync/warden/internal/core/sequence"
)

// InitializeEngine loads the config at path (defaults only when empty) and wires the engine.
func InitializeEngine(path string, clock sequence.Clock, resolver detection.Resolver) (*Engine, func(), error) {
	wire.Build(EngineSet)
	return nil, nil, nil
}
