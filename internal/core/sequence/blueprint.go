package sequence

import (
	"errors"
	"fmt"

	"github.com/zeusync/warden/internal/core/capture"
	"github.com/zeusync/warden/internal/core/entry"
	"github.com/zeusync/warden/internal/core/events"
)

// CaptureFunc samples the entity into the capture registry before actions are evaluated and
// on every engine tick while the sequence is active.
type CaptureFunc func(ctx *Context) error

// Builder assembles a Blueprint.
type Builder struct {
	steps    []Step
	captures []CaptureFunc
	defaults []capture.Descriptor
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Then appends the next action of the chain.
func (b *Builder) Then(step Step) *Builder {
	b.steps = append(b.steps, step)
	return b
}

func (b *Builder) Capture(fn CaptureFunc) *Builder {
	b.captures = append(b.captures, fn)
	return b
}

// Defaults declares keys every registry of this blueprint reads before the first write.
func (b *Builder) Defaults(keys ...capture.Descriptor) *Builder {
	b.defaults = append(b.defaults, keys...)
	return b
}

// Build validates and freezes the actions. An action can belong to one blueprint only.
// Nothing is frozen unless every action is accepted.
func (b *Builder) Build() (*Blueprint, error) {
	if len(b.steps) == 0 {
		return nil, ErrEmptyBlueprint
	}
	var errs error
	seen := make(map[Step]int, len(b.steps))
	for i, s := range b.steps {
		if s == nil {
			errs = errors.Join(errs, fmt.Errorf("action %d: nil", i))
			continue
		}
		if j, ok := seen[s]; ok {
			errs = errors.Join(errs, fmt.Errorf("action %d: %w (same as action %d)", i, ErrActionReused, j))
			continue
		}
		seen[s] = i
		if s.claimed() {
			errs = errors.Join(errs, fmt.Errorf("action %d: %w", i, ErrActionReused))
			continue
		}
		if err := s.Validate(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("action %d: %w", i, err))
		}
	}
	if errs != nil {
		return nil, errs
	}
	for i, s := range b.steps {
		if err := s.claim(); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}

	bp := &Blueprint{
		steps:    append([]Step(nil), b.steps...),
		captures: append([]CaptureFunc(nil), b.captures...),
		defaults: append([]capture.Descriptor(nil), b.defaults...),
	}
	kinds := make(map[events.Kind]struct{}, len(bp.steps))
	for _, s := range bp.steps {
		if _, ok := kinds[s.Kind()]; ok {
			continue
		}
		kinds[s.Kind()] = struct{}{}
		bp.kinds = append(bp.kinds, s.Kind())
	}
	return bp, nil
}

// Blueprint is the immutable chain a detection instantiates once per tracked entity.
type Blueprint struct {
	steps    []Step
	captures []CaptureFunc
	defaults []capture.Descriptor
	kinds    []events.Kind
}

func (bp *Blueprint) Len() int { return len(bp.steps) }

func (bp *Blueprint) Step(i int) Step { return bp.steps[i] }

// Kinds lists the distinct event kinds any action of the chain expects.
func (bp *Blueprint) Kinds() []events.Kind {
	return append([]events.Kind(nil), bp.kinds...)
}

// Instantiate starts a fresh, inactive sequence for e.
func (bp *Blueprint) Instantiate(owner Owner, e entry.Entry) *Sequence {
	ref := capture.GameReference{Entity: e.UniqueID()}
	if w := e.World(); w != nil {
		ref.World = w.Name()
	}
	return &Sequence{
		blueprint: bp,
		owner:     owner,
		entry:     e,
		captures:  capture.NewRegistry(ref, bp.defaults...),
	}
}
