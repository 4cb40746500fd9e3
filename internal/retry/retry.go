package retry

import (
	"context"
	"fmt"
	"time"

	"tableside/internal/errs"
)

// Policy configures the exponential backoff schedule.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultPolicy matches the store's write path: three retries starting at
// 100ms, doubling, capped at 2s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     2 * time.Second,
	}
}

// delay computes InitialDelay × Multiplier^attempt, capped at MaxDelay.
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
	}
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && d > max {
		d = max
	}
	return time.Duration(d)
}

// Operation is a retryable unit of work.
type Operation func(ctx context.Context) error

// Do runs op, retrying errors the predicate accepts up to MaxRetries times
// with exponential backoff. Classification is the predicate's job (usually
// errs.IsRetryable); permission and validation errors propagate on the first
// attempt. Waits honor ctx cancellation; an in-flight attempt is never
// interrupted.
func Do(ctx context.Context, policy Policy, op Operation, retryable func(error) bool) error {
	if retryable == nil {
		retryable = errs.IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry aborted after %d attempts: %w", attempt, ctx.Err())
			case <-time.After(policy.delay(attempt - 1)):
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("exhausted %d retries: %w", policy.MaxRetries, lastErr)
}
