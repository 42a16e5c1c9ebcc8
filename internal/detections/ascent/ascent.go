// Package ascent flags players that keep gaining height without touching the ground for longer
// than a jump allows.
package ascent

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/zeusync/warden/internal/config"
	"github.com/zeusync/warden/internal/core/capture"
	"github.com/zeusync/warden/internal/core/detection"
	"github.com/zeusync/warden/internal/core/entry"
	"github.com/zeusync/warden/internal/core/observability/log"
	"github.com/zeusync/warden/internal/core/sequence"
	"github.com/zeusync/warden/internal/game"
)

const (
	ID      = "ascent"
	Version = "1.2.0"
)

// Tunables are read from the detection's configuration section.
type Tunables struct {
	// MaxRise is the largest height gain, in blocks, a legitimate jump reaches.
	MaxRise float64 `yaml:"max_rise" validate:"gt=0"`
	// Window bounds the time between two consecutive airborne moves.
	Window time.Duration `yaml:"window" validate:"gt=0"`
}

func DefaultTunables() Tunables {
	return Tunables{MaxRise: 1.5, Window: 750 * time.Millisecond}
}

func (t Tunables) Validate() error {
	return config.ValidateStruct(t)
}

var (
	exemptKey = capture.NewKey("ascent.exempt", false)
	baseKey   = capture.NewKey("ascent.base_y", 0.0)
	riseKey   = capture.NewKey("ascent.rise", 0.0)
)

type Detection struct {
	detection.BaseModule

	log      log.Log
	tunables Tunables
	flagged  atomic.Int64
}

var _ detection.Module = (*Detection)(nil)

func New(cfg detection.Configuration, logger log.Log) *Detection {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Detection{
		BaseModule: detection.NewBaseModule(ID, "Ascent without ground contact", Version, cfg),
		log:        logger.With(log.String("detection", ID)),
		tunables:   DefaultTunables(),
	}
}

func (d *Detection) Tunables() Tunables { return d.tunables }

// Flagged counts completed sequences since load.
func (d *Detection) Flagged() int64 { return d.flagged.Load() }

func (d *Detection) OnLoad() error {
	t := DefaultTunables()
	if err := d.Configuration().Decode(&t); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("ascent tunables: %w", err)
	}
	d.tunables = t

	bp, err := d.blueprint()
	if err != nil {
		return err
	}
	d.SetBlueprint(bp)
	d.log.Debug("loaded", log.Float64("max_rise", t.MaxRise), log.Duration("window", t.Window))
	return nil
}

// blueprint is liftoff, climb, breach: three consecutive rising moves off the ground, the last
// one ending higher above the liftoff point than MaxRise.
func (d *Detection) blueprint() (*sequence.Blueprint, error) {
	t := d.tunables

	liftoff := sequence.NewAction[game.Move]().
		When(notExempt).
		When(rising).
		OnSuccess(sequence.Predicate[game.Move](func(c *sequence.Context, e game.Move) bool {
			capture.Set(c.Captures, baseKey, e.From.Y)
			capture.Set(c.Captures, riseKey, e.Rise())
			return true
		}))

	climb := sequence.NewAction[game.Move]().
		Window(0, t.Window).
		When(rising).
		OnSuccess(sequence.Predicate[game.Move](recordRise))

	breach := sequence.NewAction[game.Move]().
		Window(0, t.Window).
		When(airborne).
		When(func(c *sequence.Context, e game.Move) bool {
			return e.To.Y-capture.Lookup(c.Captures, baseKey) > t.MaxRise
		}).
		OnSuccess(sequence.Predicate[game.Move](recordRise))

	return sequence.NewBuilder().
		Then(liftoff).
		Then(climb).
		Then(breach).
		Capture(sampleExemption).
		Build()
}

func (d *Detection) OnComplete(_ context.Context, r detection.Report) {
	d.flagged.Add(1)
	rise, _ := r.Captures[riseKey.ID()].(float64)
	d.log.Warn("player flagged",
		log.UUID("entity", r.Entity.UniqueID()),
		log.Float64("rise", rise),
		log.Duration("duration", r.Duration()),
		log.UUID("report", r.ID),
	)
}

// sampleExemption marks players allowed to fly, and players that no longer resolve, as exempt.
func sampleExemption(c *sequence.Context) error {
	p, ok := entry.Resolve[*game.Player](c.Entry)
	capture.Set(c.Captures, exemptKey, !ok || p.CanFly)
	return nil
}

func notExempt(c *sequence.Context, _ game.Move) bool {
	return !capture.Lookup(c.Captures, exemptKey)
}

func airborne(_ *sequence.Context, e game.Move) bool {
	return !e.OnGround
}

func rising(_ *sequence.Context, e game.Move) bool {
	return !e.OnGround && e.Rise() > 0
}

func recordRise(c *sequence.Context, e game.Move) bool {
	capture.Set(c.Captures, riseKey, e.To.Y-capture.Lookup(c.Captures, baseKey))
	return true
}
