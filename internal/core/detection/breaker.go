package detection

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/zeusync/warden/internal/core/observability/log"
)

// ErrResolverUnavailable is returned instead of calling a resolver whose breaker is open.
var ErrResolverUnavailable = errors.New("resolver unavailable")

// BreakerConfig trips the resolver breaker after MaxFailures consecutive failures and keeps it
// open for Cooldown. Zero MaxFailures disables the breaker.
type BreakerConfig struct {
	MaxFailures uint32        `koanf:"max_failures" yaml:"max_failures"`
	Cooldown    time.Duration `koanf:"cooldown" yaml:"cooldown" validate:"gte=0"`
}

// Breaker wraps a Resolver so that a failing reporting backend is skipped for a while instead of
// being called from every completed sequence. Resolution runs under the entity lock, so a
// backend that keeps timing out would otherwise stall dispatch for that entity.
type Breaker struct {
	next Resolver
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func NewBreaker(next Resolver, cfg BreakerConfig, logger log.Log) *Breaker {
	if logger == nil {
		logger = log.NewNop()
	}
	settings := gobreaker.Settings{
		Name:        "resolver",
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("resolver breaker state changed",
				log.String("breaker", name),
				log.String("from", from.String()),
				log.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

func (b *Breaker) Resolve(ctx context.Context, report Report) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Resolve(ctx, report)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrResolverUnavailable, err)
	}
	return err
}

// Open reports whether calls are currently being rejected.
func (b *Breaker) Open() bool {
	return b.cb.State() == gobreaker.StateOpen
}
