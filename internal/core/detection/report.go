package detection

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/warden/internal/core/capture"
	"github.com/zeusync/warden/internal/core/entry"
	"github.com/zeusync/warden/internal/core/sequence"
)

// Report describes one completed sequence.
type Report struct {
	ID        uuid.UUID
	Detection string
	Version   string
	Entity    entry.Entry
	Steps     int

	StartedAt   time.Duration
	CompletedAt time.Duration

	Captures map[capture.KeyID]any
}

// Duration is the engine time the entity took to walk the whole chain.
func (r Report) Duration() time.Duration {
	return r.CompletedAt - r.StartedAt
}

func newReport(d Detection, s *sequence.Sequence) Report {
	return Report{
		ID:          uuid.New(),
		Detection:   d.ID(),
		Version:     d.Version(),
		Entity:      s.Entry(),
		Steps:       s.Len(),
		StartedAt:   s.StartedAt(),
		CompletedAt: s.LastActionTime(),
		Captures:    s.Captures().Snapshot(),
	}
}

// Resolver is the punishment or reporting collaborator that receives completed sequences.
type Resolver interface {
	Resolve(ctx context.Context, report Report) error
}

type ResolverFunc func(ctx context.Context, report Report) error

func (f ResolverFunc) Resolve(ctx context.Context, report Report) error {
	return f(ctx, report)
}

// Resolvers fans a report out to every resolver and joins their errors.
type Resolvers []Resolver

func (rs Resolvers) Resolve(ctx context.Context, report Report) error {
	var errs []error
	for _, r := range rs {
		if err := r.Resolve(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nopResolver struct{}

func (nopResolver) Resolve(context.Context, Report) error { return nil }
