package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/warden/internal/core/entry"
	"github.com/zeusync/warden/internal/core/events"
	"github.com/zeusync/warden/internal/core/events/bus"
	"github.com/zeusync/warden/internal/core/observability/log"
	"github.com/zeusync/warden/internal/core/observability/metrics"
	"github.com/zeusync/warden/internal/core/sequence"
	"github.com/zeusync/warden/pkg/concurrent"
)

// Dispatch routes one event produced by e. Faults of individual detections reset their
// sequences and come back joined as *FaultError values; they never stop other detections.
// An entry whose entity no longer resolves has its state torn down and is not an error.
func (m *Manager) Dispatch(ctx context.Context, event events.Event, e entry.Entry) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}
	if event == nil {
		return ErrNilEvent
	}
	id := e.UniqueID()
	if id == uuid.Nil {
		return ErrUnknownEntity
	}

	start := time.Now()
	defer func() { m.metrics.DispatchDuration(time.Since(start)) }()
	m.metrics.EventDispatched(string(event.Kind()))

	regs := m.interested(event.Kind())
	if len(regs) == 0 {
		return nil
	}
	if !e.Present() {
		m.Forget(id)
		return nil
	}

	now := m.clock.Now()
	t := m.acquire(e)
	defer m.release(t)

	var errs []error
	for _, reg := range regs {
		if err := m.drive(ctx, t, reg, event, now); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DispatchBatch dispatches envelopes grouped by entity: each entity's events keep their order
// and run on one worker, different entities run in parallel.
func (m *Manager) DispatchBatch(ctx context.Context, batch []events.Envelope) error {
	if len(batch) == 0 {
		return nil
	}

	groups := make(map[uuid.UUID][]events.Envelope)
	var order []uuid.UUID
	for _, env := range batch {
		id := env.Entry.UniqueID()
		if _, seen := groups[id]; !seen {
			order = append(order, id)
		}
		groups[id] = append(groups[id], env)
	}

	return concurrent.ForEach(ctx, order, m.workers, func(ctx context.Context, id uuid.UUID) error {
		var faults []error
		for _, env := range groups[id] {
			if err := ctx.Err(); err != nil {
				return concurrent.Abort(err)
			}
			if err := m.Dispatch(ctx, env.Event, env.Entry); err != nil {
				if errors.Is(err, ErrManagerClosed) {
					return concurrent.Abort(err)
				}
				faults = append(faults, err)
			}
		}
		return errors.Join(faults...)
	})
}

// Tick expires stale sequences, runs the captures of active ones and tears down entities that
// no longer resolve. Hosts call it once per server tick.
func (m *Manager) Tick(ctx context.Context) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}
	now := m.clock.Now()

	return concurrent.ForEach(ctx, m.shards, m.workers, func(ctx context.Context, sh *shard) error {
		var faults []error
		for _, t := range sh.snapshot() {
			if err := ctx.Err(); err != nil {
				return concurrent.Abort(err)
			}
			if err := m.tickEntity(ctx, sh, t, now); err != nil {
				faults = append(faults, err)
			}
		}
		return errors.Join(faults...)
	})
}

func (m *Manager) tickEntity(ctx context.Context, sh *shard, t *tracked, now time.Duration) error {
	t.mu.Lock()
	defer m.unlock(t)
	if t.removed {
		return nil
	}
	if !t.entry.Present() {
		m.teardownLocked(sh, t)
		return nil
	}

	var errs []error
	for id, inst := range t.sequences {
		s := inst.seq
		if s.State() != sequence.StateActive {
			delete(t.sequences, id)
			continue
		}
		if s.Expired(now) {
			step := s.Cursor()
			s.Reset()
			delete(t.sequences, id)
			m.metrics.ActiveSequences(-1)
			m.reset(t, id, step, metrics.ReasonExpired)
			continue
		}
		step := s.Cursor()
		if err := s.Tick(ctx, now); err != nil {
			delete(t.sequences, id)
			m.metrics.ActiveSequences(-1)
			errs = append(errs, m.fault(t, id, step, err))
		}
	}
	if len(t.sequences) == 0 {
		m.dropLocked(sh, t)
	}
	return errors.Join(errs...)
}

// drive feeds event to reg's sequence for t. t.mu is held.
//
// reg was looked up before t was locked and may have been unregistered since. Checking it under
// t.mu is enough: unregister sweeps every entity after removing the registration, and that sweep
// waits for t.mu.
func (m *Manager) drive(ctx context.Context, t *tracked, reg *registration, event events.Event, now time.Duration) error {
	if !m.current(reg) {
		return nil
	}
	id := reg.id()
	inst, existing := t.sequences[id]
	if existing && inst.reg != reg {
		if inst.seq.State() == sequence.StateActive {
			m.metrics.ActiveSequences(-1)
		}
		delete(t.sequences, id)
		existing = false
	}
	s := inst.seq
	if !existing {
		s = reg.detection.Blueprint().Instantiate(reg.detection, t.entry)
	}

	before := s.State()
	step := s.Cursor()
	tr, err := s.Handle(ctx, event, now)
	if tr != sequence.TransitionIgnored && before == sequence.StateInactive {
		m.metrics.SequenceStarted(id)
	}

	switch s.State() {
	case sequence.StateActive:
		if before != sequence.StateActive {
			m.metrics.ActiveSequences(1)
		}
		if !existing {
			t.sequences[id] = instance{reg: reg, seq: s}
		}
	default:
		if before == sequence.StateActive {
			m.metrics.ActiveSequences(-1)
		}
	}

	switch tr {
	case sequence.TransitionAdvanced:
		m.metrics.SequenceAdvanced(id, step)
		m.log.Debug("sequence advanced",
			log.String("detection", id),
			log.UUID("entity", t.entry.UniqueID()),
			log.Int("step", step),
		)
	case sequence.TransitionCompleted:
		m.metrics.SequenceAdvanced(id, step)
		delete(t.sequences, id)
		return m.complete(ctx, reg, t, s)
	case sequence.TransitionFailed:
		m.reset(t, id, step, metrics.ReasonFailed)
	case sequence.TransitionExpired:
		m.reset(t, id, step, metrics.ReasonExpired)
	case sequence.TransitionFaulted:
		return m.fault(t, id, step, err)
	}
	return nil
}

func (m *Manager) complete(ctx context.Context, reg *registration, t *tracked, s *sequence.Sequence) error {
	report := newReport(reg.detection, s)
	m.metrics.SequenceCompleted(report.Detection)
	m.log.Info("sequence completed",
		log.String("detection", report.Detection),
		log.UUID("entity", t.entry.UniqueID()),
		log.UUID("report", report.ID),
		log.Duration("duration", report.Duration()),
	)

	if err := notify(ctx, reg.detection, report); err != nil {
		return m.fault(t, report.Detection, report.Steps-1, err)
	}
	t.post(bus.TypeSequenceCompleted, report)
	if err := m.resolver.Resolve(ctx, report); err != nil {
		m.log.Error("report resolution failed",
			log.String("detection", report.Detection),
			log.UUID("report", report.ID),
			log.Error(err),
		)
		return fmt.Errorf("resolve report %s: %w", report.ID, err)
	}
	return nil
}

func notify(ctx context.Context, d Detection, report Report) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &sequence.PanicError{Value: r}
		}
	}()
	d.OnComplete(ctx, report)
	return nil
}

// reset records a reset of t's sequence for detection. t.mu is held.
func (m *Manager) reset(t *tracked, detection string, step int, reason string) {
	entity := t.entry.UniqueID()
	m.metrics.SequenceReset(detection, reason)
	m.log.Debug("sequence reset",
		log.String("detection", detection),
		log.UUID("entity", entity),
		log.Int("step", step),
		log.String("reason", reason),
	)
	t.post(bus.TypeSequenceReset, ResetNotice{Detection: detection, Entity: entity, Step: step, Reason: reason})
}

// fault records a fault of t's sequence for detection. t.mu is held.
func (m *Manager) fault(t *tracked, detection string, step int, err error) error {
	fe := &FaultError{Detection: detection, Entity: t.entry.UniqueID(), Step: step, Err: err}
	m.metrics.Fault(detection)
	m.metrics.SequenceReset(detection, metrics.ReasonFault)
	m.log.Error("sequence fault",
		log.String("detection", detection),
		log.UUID("entity", fe.Entity),
		log.Int("step", step),
		log.Error(err),
	)
	t.post(bus.TypeSequenceFault, fe)
	return fe
}

func (m *Manager) publish(ev bus.Event) {
	if err := m.bus.Publish(ev); err != nil {
		m.log.Warn("notification handler failed", log.String("type", ev.Type()), log.Error(err))
	}
}
