// Package reach flags players that land several hits in a row from further away than the
// configured reach allows.
package reach

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/warden/internal/config"
	"github.com/zeusync/warden/internal/core/capture"
	"github.com/zeusync/warden/internal/core/detection"
	"github.com/zeusync/warden/internal/core/observability/log"
	"github.com/zeusync/warden/internal/core/sequence"
	"github.com/zeusync/warden/internal/game"
)

const (
	ID      = "reach"
	Version = "0.4.0"
)

type Tunables struct {
	MaxReach float64       `yaml:"max_reach" validate:"gt=0"`
	Hits     int           `yaml:"hits" validate:"min=1"`
	Window   time.Duration `yaml:"window" validate:"gt=0"`
}

func (t Tunables) Validate() error {
	return config.ValidateStruct(t)
}

func DefaultTunables() Tunables {
	return Tunables{MaxReach: 3.1, Hits: 3, Window: 2 * time.Second}
}

var (
	longestKey = capture.NewKey("reach.longest", 0.0)
	hitsKey    = capture.NewKey("reach.hits", 0)
)

// Detection is a reach heuristic. Every completed sequence is kept as a Violation.
type Detection struct {
	detection.BaseModule

	log      log.Log
	tunables Tunables

	mu         sync.Mutex
	violations []Violation
}

type Violation struct {
	Entity  uuid.UUID
	Longest float64
	Hits    int
}

var _ detection.Module = (*Detection)(nil)

func New(cfg detection.Configuration, logger log.Log) *Detection {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Detection{
		BaseModule: detection.NewBaseModule(ID, "Extended melee reach", Version, cfg),
		log:        logger.With(log.String("detection", ID)),
		tunables:   DefaultTunables(),
	}
}

func (d *Detection) OnLoad() error {
	t := DefaultTunables()
	if err := d.Configuration().Decode(&t); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("reach tunables: %w", err)
	}
	d.tunables = t

	b := sequence.NewBuilder().Defaults(hitsKey)
	for i := 0; i < t.Hits; i++ {
		hit := sequence.NewAction[game.Attack]().
			When(func(_ *sequence.Context, e game.Attack) bool { return e.Reach > t.MaxReach }).
			OnSuccess(sequence.Predicate[game.Attack](record))
		if i > 0 {
			hit.Window(0, t.Window)
		}
		b.Then(hit)
	}
	bp, err := b.Build()
	if err != nil {
		return err
	}
	d.SetBlueprint(bp)
	return nil
}

func (d *Detection) OnComplete(_ context.Context, r detection.Report) {
	v := Violation{Entity: r.Entity.UniqueID()}
	v.Longest, _ = r.Captures[longestKey.ID()].(float64)
	v.Hits, _ = r.Captures[hitsKey.ID()].(int)

	d.mu.Lock()
	d.violations = append(d.violations, v)
	d.mu.Unlock()

	d.log.Warn("player flagged",
		log.UUID("entity", v.Entity),
		log.Float64("longest", v.Longest),
		log.Int("hits", v.Hits),
	)
}

func (d *Detection) Violations() []Violation {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Violation(nil), d.violations...)
}

func record(c *sequence.Context, e game.Attack) bool {
	capture.Update(c.Captures, hitsKey, func(n int) int { return n + 1 })
	if e.Reach > capture.Lookup(c.Captures, longestKey) {
		capture.Set(c.Captures, longestKey, e.Reach)
	}
	return true
}
