// Package retry provides the bounded exponential-backoff helper shared by
// the subscription paths.
package retry

import (
	"context"
	"time"
)

// Policy describes a bounded exponential backoff schedule.
type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// ErrExhausted wraps the last error once every attempt has been spent.
type ErrExhausted struct {
	Attempts int
	Last     error
}

func (e *ErrExhausted) Error() string {
	return "retry attempts exhausted: " + e.Last.Error()
}

func (e *ErrExhausted) Unwrap() error { return e.Last }

// Do runs fn up to MaxAttempts times, sleeping between attempts with an
// exponentially growing delay capped at MaxDelay. retryable decides which
// errors are worth another attempt; everything else propagates immediately.
// When attempts run out, the last error is returned wrapped in ErrExhausted.
func Do(ctx context.Context, policy Policy, retryable func(error) bool, fn func() error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, policy.delay(attempt-1)); err != nil {
				return err
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if retryable == nil || !retryable(lastErr) {
			return lastErr
		}
	}
	return &ErrExhausted{Attempts: policy.MaxAttempts, Last: lastErr}
}

func (p Policy) delay(exponent int) time.Duration {
	delay := p.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	for i := 0; i < exponent; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
