// Package detection hosts heuristics and routes host events into their per-entity sequences.
package detection

import (
	"context"

	"github.com/zeusync/warden/internal/core/sequence"
)

// Detection is a registered heuristic. ID is its identity within a manager.
type Detection interface {
	ID() string
	Name() string
	Version() string
	Configuration() Configuration
	// Blueprint is the action chain the manager instantiates for every tracked entity.
	Blueprint() *sequence.Blueprint
	// OnComplete is called synchronously, with the entity's state locked, when a sequence
	// completes. It must not dispatch events for the same entity; bus handlers for
	// sequence.completed run after the entity is unlocked and may.
	OnComplete(ctx context.Context, report Report)
}

// Module is a detection with lifecycle hooks driven by Manager.Install and Manager.Uninstall.
type Module interface {
	Detection

	OnConstruction() error
	// OnLoad is where a module reads its configuration and builds its blueprint.
	OnLoad() error
	// OnRegister runs once the manager accepted the module.
	OnRegister(m *Manager) error
	OnDeconstruction() error
}

// BaseModule implements the bookkeeping half of Module. Embed it and override the hooks needed.
type BaseModule struct {
	id        string
	name      string
	version   string
	config    Configuration
	blueprint *sequence.Blueprint
}

func NewBaseModule(id, name, version string, config Configuration) BaseModule {
	if config == nil {
		config = Empty
	}
	return BaseModule{id: id, name: name, version: version, config: config}
}

func (b *BaseModule) ID() string                          { return b.id }
func (b *BaseModule) Name() string                        { return b.name }
func (b *BaseModule) Version() string                     { return b.version }
func (b *BaseModule) Configuration() Configuration        { return b.config }
func (b *BaseModule) Blueprint() *sequence.Blueprint      { return b.blueprint }
func (b *BaseModule) SetBlueprint(bp *sequence.Blueprint) { b.blueprint = bp }

func (*BaseModule) OnConstruction() error              { return nil }
func (*BaseModule) OnLoad() error                      { return nil }
func (*BaseModule) OnRegister(*Manager) error          { return nil }
func (*BaseModule) OnDeconstruction() error            { return nil }
func (*BaseModule) OnComplete(context.Context, Report) {}
