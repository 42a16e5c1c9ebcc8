// Package events defines the contract between the host event adapter and the engine.
package events

import "github.com/zeusync/warden/internal/core/entry"

// Kind names a concrete host event type. Detections are routed by Kind.
type Kind string

// Event is a raw host event. Kind must not depend on receiver state: the engine calls it on
// zero values to learn which kind an action expects.
type Event interface {
	Kind() Kind
}

// KindOf reports the kind of event type T.
func KindOf[T Event]() Kind {
	var zero T
	return zero.Kind()
}

// Envelope pairs an event with the entity that produced it.
type Envelope struct {
	Event Event
	Entry entry.Entry
}
