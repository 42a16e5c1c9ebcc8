package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/zeusync/warden/internal/core/capture"
	"github.com/zeusync/warden/internal/core/entry"
	"github.com/zeusync/warden/internal/core/events"
)

// State is the lifecycle position of a sequence.
type State int

const (
	StateInactive State = iota
	StateActive
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateComplete:
		return "complete"
	default:
		return "invalid"
	}
}

// Transition is what a single Handle call did to the sequence.
type Transition int

const (
	// TransitionIgnored: the event is not of the kind the current action expects.
	TransitionIgnored Transition = iota
	// TransitionWaiting: the current action's delay has not elapsed yet.
	TransitionWaiting
	// TransitionAdvanced: the current action succeeded and the cursor moved on.
	TransitionAdvanced
	// TransitionCompleted: the final action succeeded.
	TransitionCompleted
	// TransitionFailed: a primary condition did not hold; the sequence was reset.
	TransitionFailed
	// TransitionExpired: the current action's expire bound passed; the sequence was reset.
	TransitionExpired
	// TransitionFaulted: a condition, hook or capture errored or panicked; the sequence was reset.
	TransitionFaulted
)

func (t Transition) String() string {
	switch t {
	case TransitionIgnored:
		return "ignored"
	case TransitionWaiting:
		return "waiting"
	case TransitionAdvanced:
		return "advanced"
	case TransitionCompleted:
		return "completed"
	case TransitionFailed:
		return "failed"
	case TransitionExpired:
		return "expired"
	case TransitionFaulted:
		return "faulted"
	default:
		return "invalid"
	}
}

// Reset reports whether the transition sent the sequence back to its first action.
func (t Transition) Reset() bool {
	return t == TransitionFailed || t == TransitionExpired || t == TransitionFaulted
}

// Sequence is one detection's in-progress match attempt for one entity.
// It is not safe for concurrent use; the caller serializes events per entity.
type Sequence struct {
	blueprint *Blueprint
	owner     Owner
	entry     entry.Entry
	captures  *capture.Registry

	state          State
	cursor         int
	startedAt      time.Duration
	lastActionTime time.Duration
}

func (s *Sequence) Owner() Owner { return s.owner }

func (s *Sequence) Entry() entry.Entry { return s.entry }

func (s *Sequence) Captures() *capture.Registry { return s.captures }

func (s *Sequence) State() State { return s.state }

// Cursor is the index of the current action, or Len() once complete.
func (s *Sequence) Cursor() int { return s.cursor }

func (s *Sequence) Len() int { return s.blueprint.Len() }

func (s *Sequence) StartedAt() time.Duration { return s.startedAt }

func (s *Sequence) LastActionTime() time.Duration { return s.lastActionTime }

// Handle drives the sequence with one event observed at now.
func (s *Sequence) Handle(ctx context.Context, event events.Event, now time.Duration) (Transition, error) {
	if s.state == StateComplete || event == nil {
		return TransitionIgnored, nil
	}
	step := s.blueprint.steps[s.cursor]
	if event.Kind() != step.Kind() {
		return TransitionIgnored, nil
	}
	if s.state == StateInactive {
		s.state = StateActive
		s.startedAt = now
		s.lastActionTime = now
	}

	c := s.context(ctx, now)
	if err := s.capture(c); err != nil {
		s.Reset()
		return TransitionFaulted, err
	}

	switch s.timing(step, now) {
	case ActionWaiting:
		return TransitionWaiting, nil
	case ActionExpired:
		s.Reset()
		return TransitionExpired, nil
	}

	ok, err := guard(func() (bool, error) { return step.apply(c, event) })
	if err != nil {
		s.Reset()
		return TransitionFaulted, fmt.Errorf("action %d: %w", c.Step, err)
	}
	if !ok {
		_, err = guard(func() (bool, error) { return step.fail(c, event) })
		s.Reset()
		if err != nil {
			return TransitionFaulted, fmt.Errorf("action %d failure hook: %w", c.Step, err)
		}
		return TransitionFailed, nil
	}
	if _, err = guard(func() (bool, error) { return step.succeed(c, event) }); err != nil {
		s.Reset()
		return TransitionFaulted, fmt.Errorf("action %d success hook: %w", c.Step, err)
	}

	s.cursor++
	s.lastActionTime = now
	if s.cursor == s.blueprint.Len() {
		s.state = StateComplete
		return TransitionCompleted, nil
	}
	return TransitionAdvanced, nil
}

// Tick runs the captures of an active sequence outside of event handling.
func (s *Sequence) Tick(ctx context.Context, now time.Duration) error {
	if s.state != StateActive {
		return nil
	}
	if err := s.capture(s.context(ctx, now)); err != nil {
		s.Reset()
		return err
	}
	return nil
}

// Expired reports whether the current action's expire bound has passed at now.
func (s *Sequence) Expired(now time.Duration) bool {
	return s.state == StateActive && s.timing(s.blueprint.steps[s.cursor], now) == ActionExpired
}

// StepState reports the state of action i as seen at now.
func (s *Sequence) StepState(i int, now time.Duration) ActionState {
	switch {
	case i < 0 || i >= s.blueprint.Len():
		return ActionPending
	case i < s.cursor:
		return ActionSucceeded
	case i > s.cursor || s.state != StateActive:
		return ActionPending
	default:
		return s.timing(s.blueprint.steps[i], now)
	}
}

// Reset returns the sequence to its first action and discards every capture.
func (s *Sequence) Reset() {
	s.state = StateInactive
	s.cursor = 0
	s.startedAt = 0
	s.lastActionTime = 0
	s.captures.Reset()
}

// timing places now within the current action's window. A clock that went backwards counts
// as not having waited long enough.
func (s *Sequence) timing(step Step, now time.Duration) ActionState {
	elapsed := now - s.lastActionTime
	switch {
	case elapsed < 0:
		return ActionWaiting
	case elapsed > step.Expire():
		return ActionExpired
	case elapsed < step.Delay():
		return ActionWaiting
	default:
		return ActionEvaluating
	}
}

func (s *Sequence) capture(c *Context) error {
	for i, fn := range s.blueprint.captures {
		_, err := guard(func() (bool, error) { return true, fn(c) })
		if err != nil {
			return fmt.Errorf("capture %d: %w", i, err)
		}
	}
	return nil
}

func (s *Sequence) context(ctx context.Context, now time.Duration) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	elapsed := now - s.lastActionTime
	if elapsed < 0 {
		elapsed = 0
	}
	return &Context{
		Ctx:      ctx,
		Entry:    s.entry,
		Captures: s.captures,
		Owner:    s.owner,
		Now:      now,
		Elapsed:  elapsed,
		Step:     s.cursor,
	}
}
