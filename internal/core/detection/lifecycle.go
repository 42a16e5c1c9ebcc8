package detection

import (
	"fmt"
	"sync"
)

// Stage is the lifecycle position of a detection module.
type Stage int

const (
	StageNew Stage = iota
	StageConstructed
	StageLoaded
	StageRegistered
	StageDeconstructed
)

func (s Stage) String() string {
	switch s {
	case StageNew:
		return "new"
	case StageConstructed:
		return "constructed"
	case StageLoaded:
		return "loaded"
	case StageRegistered:
		return "registered"
	case StageDeconstructed:
		return "deconstructed"
	default:
		return "invalid"
	}
}

// Lifecycle enforces construct -> load -> register -> deconstruct. Each transition runs its
// hook at most once; a failed hook leaves the stage unchanged.
type Lifecycle struct {
	mu    sync.Mutex
	stage Stage
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

func (l *Lifecycle) Stage() Stage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stage
}

func (l *Lifecycle) Construct(hook func() error) error {
	return l.advance(StageConstructed, hook, StageNew)
}

func (l *Lifecycle) Load(hook func() error) error {
	return l.advance(StageLoaded, hook, StageConstructed)
}

func (l *Lifecycle) Register(hook func() error) error {
	return l.advance(StageRegistered, hook, StageLoaded)
}

// Deconstruct is reachable from every constructed stage and is terminal even when the hook fails.
func (l *Lifecycle) Deconstruct(hook func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.stage {
	case StageConstructed, StageLoaded, StageRegistered:
	default:
		return fmt.Errorf("%w: %s -> %s", ErrLifecycle, l.stage, StageDeconstructed)
	}
	l.stage = StageDeconstructed
	if hook == nil {
		return nil
	}
	return hook()
}

func (l *Lifecycle) advance(to Stage, hook func() error, from Stage) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stage != from {
		return fmt.Errorf("%w: %s -> %s", ErrLifecycle, l.stage, to)
	}
	if hook != nil {
		if err := hook(); err != nil {
			return fmt.Errorf("%s: %w", to, err)
		}
	}
	l.stage = to
	return nil
}
