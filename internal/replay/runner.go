package replay

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/zeusync/warden/internal/core/detection"
	"github.com/zeusync/warden/internal/core/entry"
	"github.com/zeusync/warden/internal/core/events"
	"github.com/zeusync/warden/internal/core/observability/log"
	"github.com/zeusync/warden/internal/core/sequence"
	"github.com/zeusync/warden/internal/game"
)

// Runner replays scripts against Manager. Clock must be the manager's clock.
type Runner struct {
	Manager  *detection.Manager
	Clock    *sequence.ManualClock
	Registry *Registry
	Log      log.Log
}

// Result summarises one run. Faults are detection faults; they do not stop the replay.
type Result struct {
	Events  int
	Batches int
	Ticks   int
	Faults  []error
}

type plannedStep struct {
	Step
	event events.Event
}

func (r *Runner) Run(ctx context.Context, s *Script) (Result, error) {
	logger := r.Log
	if logger == nil {
		logger = log.NewNop()
	}
	if err := s.Validate(); err != nil {
		return Result{}, err
	}

	world := entry.NewMemoryWorld(s.World)
	players := make(map[string]entry.Entry, len(s.Players))
	for _, p := range s.Players {
		id := p.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		players[p.Name] = world.Put(id, &game.Player{ID: id, Name: p.Name, CanFly: p.CanFly})
	}

	plan := make([]plannedStep, len(s.Steps))
	for i, st := range s.Steps {
		plan[i] = plannedStep{Step: st}
		if st.Event == "" {
			continue
		}
		ev, err := r.Registry.Decode(events.Kind(st.Event), &s.Steps[i].Data)
		if err != nil {
			return Result{}, fmt.Errorf("steps[%d]: %w", i, err)
		}
		plan[i].event = ev
	}
	sort.SliceStable(plan, func(i, j int) bool { return plan[i].At < plan[j].At })

	var (
		res   Result
		batch []events.Envelope
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		res.Batches++
		res.Events += len(batch)
		err := r.Manager.DispatchBatch(ctx, batch)
		batch = batch[:0]
		return r.absorb(&res, err)
	}

	for i, st := range plan {
		if i > 0 && st.At != plan[i-1].At {
			if err := flush(); err != nil {
				return res, err
			}
		}
		r.Clock.Set(st.At)

		switch {
		case st.event != nil:
			batch = append(batch, events.Envelope{Event: st.event, Entry: players[st.Player]})
		case st.Tick:
			if err := flush(); err != nil {
				return res, err
			}
			res.Ticks++
			if err := r.absorb(&res, r.Manager.Tick(ctx)); err != nil {
				return res, err
			}
		case st.Despawn != "":
			if err := flush(); err != nil {
				return res, err
			}
			world.Remove(players[st.Despawn].UniqueID())
			logger.Debug("player despawned", log.String("player", st.Despawn), log.Duration("at", st.At))
		}
	}
	if err := flush(); err != nil {
		return res, err
	}

	logger.Info("replay finished",
		log.Int("events", res.Events),
		log.Int("batches", res.Batches),
		log.Int("ticks", res.Ticks),
		log.Int("faults", len(res.Faults)),
	)
	return res, nil
}

// absorb records detection faults and passes anything else through as fatal.
func (r *Runner) absorb(res *Result, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, detection.ErrManagerClosed) {
		return err
	}
	res.Faults = append(res.Faults, err)
	return nil
}
