// Package concurrent holds the bounded fan-out used to spread engine work over worker goroutines.
package concurrent

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

type abort struct{ err error }

func (a *abort) Error() string { return a.err.Error() }
func (a *abort) Unwrap() error { return a.err }

// Abort marks err as fatal for ForEach: items not yet started are skipped.
func Abort(err error) error {
	if err == nil {
		return nil
	}
	return &abort{err: err}
}

// ForEach calls fn for every item on at most limit goroutines (unbounded when limit < 1).
// Errors returned by fn are collected and joined. An error wrapped with Abort or the
// cancellation of ctx stops scheduling the remaining items.
func ForEach[T any](ctx context.Context, items []T, limit int, fn func(context.Context, T) error) error {
	if len(items) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := fn(gctx, item)
			var a *abort
			if errors.As(err, &a) {
				return a.err
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}

	err := g.Wait()
	return errors.Join(append([]error{err}, errs...)...)
}
