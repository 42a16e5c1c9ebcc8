package bus

import "time"

// Notification types published by the detection engine.
const (
	TypeSequenceCompleted = "sequence.completed"
	TypeSequenceReset     = "sequence.reset"
	TypeSequenceFault     = "sequence.fault"
	TypeEntityForgotten   = "entity.forgotten"
)

// EventBus carries engine notifications to reporting collaborators.
//
// Delivery is synchronous and happens in the publisher's goroutine, in subscription order.
// Handler errors are joined and returned from Publish; they never stop delivery to the
// remaining handlers. Handlers run inside the dispatch path and must not call back into the
// detection manager.
type EventBus interface {
	Publish(event Event) error
	// Subscribe registers a handler for one notification type.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// SubscribeAll registers a handler receiving every notification.
	SubscribeAll(handler EventHandler) (Subscription, error)
	// Unsubscribe cancels sub. It is safe to call with nil.
	Unsubscribe(sub Subscription) error
	// Subscribers counts the live subscriptions.
	Subscribers() int
}

// Event is an immutable notification.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

// EventHandler is invoked per delivered event.
type EventHandler func(event Event) error

// Subscription is a registered handler.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// Payload returns the data of ev as T.
func Payload[T any](ev Event) (T, bool) {
	v, ok := ev.Data().(T)
	return v, ok
}
