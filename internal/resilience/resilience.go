package resilience

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/teakit/teakit/internal/scheduler"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 100ms)
	MaxInterval         time.Duration // Maximum retry interval (default 10s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 2min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// BreakerRegistry manages named circuit breakers, one per class of action
// (e.g. one per external service a pipeline talks to).
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerRegistry creates an empty registry.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the circuit breaker for the given name, creating it on first
// use. The breaker trips after 5 consecutive failures, stays open for 30s and
// allows 3 probe requests half-open.
func (r *BreakerRegistry) Get(name string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// User cancellation is not an action failure.
			if err == nil {
				return true
			}
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})

	r.breakers[name] = cb
	return cb
}

// Wrap layers retry and circuit-breaker protection on top of an action. The
// scheduler core never retries a failed task; callers that want retries wrap
// the action itself before building the graph. The wrapped action keeps the
// plain Action signature, so the executor cannot tell the difference.
func Wrap(action scheduler.Action, cfg RetryConfig, cb *gobreaker.CircuitBreaker) scheduler.Action {
	return func(ctx context.Context, m scheduler.Messenger, args []any) (any, error) {
		var out any

		operation := func() error {
			// Fail fast on a cancelled context.
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}

			result, err := cb.Execute(func() (interface{}, error) {
				return action(ctx, m, args)
			})
			if err != nil {
				// An open circuit will not recover within this run.
				if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
					return backoff.Permanent(err)
				}
				if ctx.Err() != nil {
					return backoff.Permanent(err)
				}
				return err
			}

			out = result
			return nil
		}

		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = cfg.InitialInterval
		policy.MaxInterval = cfg.MaxInterval
		policy.MaxElapsedTime = cfg.MaxElapsedTime
		policy.Multiplier = cfg.Multiplier
		policy.RandomizationFactor = cfg.RandomizationFactor

		if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
			return nil, err
		}
		return out, nil
	}
}
