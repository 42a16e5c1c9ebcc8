package sequence

import (
	"fmt"
	"math"
	"time"

	"github.com/zeusync/warden/internal/core/events"
)

// Forever is the expire bound of an action that never times out.
const Forever time.Duration = math.MaxInt64

// ActionState is the position of one action within a sequence traversal.
type ActionState int

const (
	ActionPending ActionState = iota
	ActionWaiting
	ActionEvaluating
	ActionSucceeded
	ActionFailed
	ActionExpired
)

func (s ActionState) String() string {
	switch s {
	case ActionPending:
		return "pending"
	case ActionWaiting:
		return "waiting"
	case ActionEvaluating:
		return "evaluating"
	case ActionSucceeded:
		return "succeeded"
	case ActionFailed:
		return "failed"
	case ActionExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// Step is the event-type-erased view of an Action held by blueprints and sequences.
type Step interface {
	Kind() events.Kind
	Delay() time.Duration
	Expire() time.Duration
	Validate() error

	claimed() bool
	claim() error
	apply(ctx *Context, event events.Event) (bool, error)
	succeed(ctx *Context, event events.Event) (bool, error)
	fail(ctx *Context, event events.Event) (bool, error)
}

// Action is one step of a sequence: conditions that must all hold for a single event of
// type T, evaluated inside the [delay, expire] window measured from the previous step.
//
// Actions are configured before being added to a Builder. Once the blueprint is built the
// action is frozen; the chaining setters panic and SetDelay/SetExpire return ErrActionFrozen.
type Action[T events.Event] struct {
	kind       events.Kind
	conditions []Condition[T]
	success    []Condition[T]
	failure    []Condition[T]
	delay      time.Duration
	expire     time.Duration
	frozen     bool
}

var _ Step = (*Action[events.Event])(nil)

// NewAction creates an action for events of type T with no delay and no expiry.
func NewAction[T events.Event]() *Action[T] {
	return &Action[T]{kind: events.KindOf[T](), expire: Forever}
}

// AddCondition appends primary conditions, AND-combined in declaration order.
func (a *Action[T]) AddCondition(c ...Condition[T]) *Action[T] {
	a.mustBeOpen()
	a.conditions = append(a.conditions, c...)
	return a
}

// When is AddCondition for plain functions.
func (a *Action[T]) When(fn func(ctx *Context, event T) bool) *Action[T] {
	return a.AddCondition(Predicate[T](fn))
}

// OnSuccess appends conditions run after the primary conditions held.
func (a *Action[T]) OnSuccess(c ...Condition[T]) *Action[T] {
	a.mustBeOpen()
	a.success = append(a.success, c...)
	return a
}

// OnFailure appends conditions run after a primary condition failed.
func (a *Action[T]) OnFailure(c ...Condition[T]) *Action[T] {
	a.mustBeOpen()
	a.failure = append(a.failure, c...)
	return a
}

// Window sets delay and expire together.
func (a *Action[T]) Window(delay, expire time.Duration) *Action[T] {
	a.mustBeOpen()
	a.delay, a.expire = delay, expire
	return a
}

func (a *Action[T]) SetDelay(d time.Duration) error {
	if a.frozen {
		return ErrActionFrozen
	}
	a.delay = d
	return nil
}

func (a *Action[T]) SetExpire(d time.Duration) error {
	if a.frozen {
		return ErrActionFrozen
	}
	a.expire = d
	return nil
}

func (a *Action[T]) Delay() time.Duration { return a.delay }

func (a *Action[T]) Expire() time.Duration { return a.expire }

// Kind is the event kind this action expects.
func (a *Action[T]) Kind() events.Kind { return a.kind }

func (a *Action[T]) Validate() error {
	if a.delay < 0 || a.expire < a.delay {
		return fmt.Errorf("%w: delay=%s expire=%s", ErrInvalidTiming, a.delay, a.expire)
	}
	return nil
}

// Apply reports whether every primary condition holds for event. Evaluation stops at the
// first condition that fails or errors.
func (a *Action[T]) Apply(ctx *Context, event T) (bool, error) {
	for _, c := range a.conditions {
		ok, err := c.Evaluate(ctx, event)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Succeed runs every success condition and reports whether all of them held.
func (a *Action[T]) Succeed(ctx *Context, event T) (bool, error) {
	return runAll(a.success, ctx, event)
}

// Fail runs every failure condition and reports whether all of them held.
func (a *Action[T]) Fail(ctx *Context, event T) (bool, error) {
	return runAll(a.failure, ctx, event)
}

func (a *Action[T]) mustBeOpen() {
	if a.frozen {
		panic(ErrActionFrozen)
	}
}

func (a *Action[T]) claimed() bool { return a.frozen }

func (a *Action[T]) claim() error {
	if a.frozen {
		return ErrActionReused
	}
	if err := a.Validate(); err != nil {
		return err
	}
	a.frozen = true
	return nil
}

func (a *Action[T]) apply(ctx *Context, event events.Event) (bool, error) {
	typed, err := a.cast(event)
	if err != nil {
		return false, err
	}
	return a.Apply(ctx, typed)
}

func (a *Action[T]) succeed(ctx *Context, event events.Event) (bool, error) {
	typed, err := a.cast(event)
	if err != nil {
		return false, err
	}
	return a.Succeed(ctx, typed)
}

func (a *Action[T]) fail(ctx *Context, event events.Event) (bool, error) {
	typed, err := a.cast(event)
	if err != nil {
		return false, err
	}
	return a.Fail(ctx, typed)
}

func (a *Action[T]) cast(event events.Event) (T, error) {
	typed, ok := event.(T)
	if !ok {
		return typed, fmt.Errorf("%w: kind %q carried %T", ErrKindMismatch, event.Kind(), event)
	}
	return typed, nil
}

func runAll[T any](conditions []Condition[T], ctx *Context, event T) (bool, error) {
	all := true
	for _, c := range conditions {
		ok, err := c.Evaluate(ctx, event)
		if err != nil {
			return false, err
		}
		all = all && ok
	}
	return all, nil
}
