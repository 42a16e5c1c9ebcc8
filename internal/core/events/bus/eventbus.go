package bus

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// wildcard is the subscription type used by SubscribeAll.
const wildcard = "*"

var (
	ErrNilEvent   = errors.New("bus: nil event")
	ErrNilHandler = errors.New("bus: nil handler")
)

type notification struct {
	kind   string
	source string
	at     time.Time
	data   any
}

func (n notification) Type() string         { return n.kind }
func (n notification) Source() string       { return n.source }
func (n notification) Timestamp() time.Time { return n.at }
func (n notification) Data() any            { return n.data }

// NewEvent creates a notification stamped with the current wall time.
func NewEvent(typ, src string, data any) Event {
	return notification{kind: typ, source: src, at: time.Now(), data: data}
}

type subscription struct {
	id        string
	eventType string
	handler   EventHandler
	active    atomic.Bool
	bus       *inMemoryBus
}

func (s *subscription) ID() string        { return s.id }
func (s *subscription) EventType() string { return s.eventType }
func (s *subscription) IsActive() bool    { return s.active.Load() }

func (s *subscription) Cancel() error {
	if s.active.CompareAndSwap(true, false) {
		s.bus.remove(s)
	}
	return nil
}

func (s *subscription) matches(eventType string) bool {
	return s.eventType == wildcard || s.eventType == eventType
}

type inMemoryBus struct {
	mu   sync.RWMutex
	subs []*subscription
}

// New returns an empty in-process bus.
func New() EventBus {
	return &inMemoryBus{}
}

func (b *inMemoryBus) Publish(event Event) error {
	if event == nil {
		return ErrNilEvent
	}
	kind := event.Type()

	b.mu.RLock()
	targets := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.matches(kind) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	var errs []error
	for _, s := range targets {
		if !s.IsActive() {
			continue
		}
		if err := s.handler(event); err != nil {
			errs = append(errs, fmt.Errorf("%s handler %s: %w", kind, s.id, err))
		}
	}
	return errors.Join(errs...)
}

func (b *inMemoryBus) Subscribe(eventType string, handler EventHandler) (Subscription, error) {
	if eventType == "" || eventType == wildcard {
		return nil, fmt.Errorf("bus: invalid event type %q", eventType)
	}
	return b.subscribe(eventType, handler)
}

func (b *inMemoryBus) SubscribeAll(handler EventHandler) (Subscription, error) {
	return b.subscribe(wildcard, handler)
}

func (b *inMemoryBus) subscribe(eventType string, handler EventHandler) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	s := &subscription{id: uuid.NewString(), eventType: eventType, handler: handler, bus: b}
	s.active.Store(true)

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
	return s, nil
}

func (b *inMemoryBus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Cancel()
}

func (b *inMemoryBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *inMemoryBus) remove(s *subscription) {
	b.mu.Lock()
	b.subs = slices.DeleteFunc(b.subs, func(c *subscription) bool { return c == s })
	b.mu.Unlock()
}
