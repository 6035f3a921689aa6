// Package retry runs store operations again after transient failures.
package retry

import (
	"context"
	"log/slog"
	"time"

	"habersin/internal/models"
	"habersin/internal/observability"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = 2 * time.Second
)

// Policy bounds how often and how far apart an operation is retried.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultPolicy returns three attempts with a fixed two second delay.
func DefaultPolicy() Policy {
	return Policy{Attempts: DefaultAttempts, Delay: DefaultDelay}
}

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// Do calls fn until it succeeds, returns a non-transient error, or the
// attempts run out. Exhaustion yields a terminal store error; cancellation of
// ctx while waiting returns ctx.Err().
func Do(ctx context.Context, p Policy, operation string, fn func(ctx context.Context) error) error {
	attempts := p.attempts()
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			if attempt > 1 {
				observability.StoreRetries.WithLabelValues(operation, "recovered").Inc()
			}
			return nil
		}
		if !models.IsTransient(err) {
			return err
		}

		slog.WarnContext(ctx, "transient store failure",
			slog.String("operation", operation),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		if attempt == attempts {
			break
		}

		observability.StoreRetries.WithLabelValues(operation, "retry").Inc()
		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	observability.StoreRetries.WithLabelValues(operation, "exhausted").Inc()
	return models.NewTerminalStoreError(operation, attempts, err)
}

// Value is Do for operations that return a result.
func Value[T any](ctx context.Context, p Policy, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, operation, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
