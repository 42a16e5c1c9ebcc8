package sequence

import (
	"context"
	"time"

	"github.com/zeusync/warden/internal/core/capture"
	"github.com/zeusync/warden/internal/core/entry"
)

// Configuration is the opaque tunable bag of a detection. The engine only passes it along.
type Configuration interface {
	// Decode copies the tunables into out, typically a pointer to a heuristic's config struct.
	Decode(out any) error
}

// Owner is the detection a sequence works for.
type Owner interface {
	ID() string
	Configuration() Configuration
}

// Context is handed to every condition, hook and capture. It is only valid for the duration
// of the call that received it.
type Context struct {
	Ctx context.Context

	Entry    entry.Entry
	Captures *capture.Registry
	Owner    Owner

	// Now is the engine clock reading for the event being processed.
	Now time.Duration
	// Elapsed is the time since the previous action completed, or since the sequence started.
	Elapsed time.Duration
	// Step is the index of the action being evaluated.
	Step int
}
