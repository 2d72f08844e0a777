package errs

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is the fixed policy spec.md §7 prescribes for Transient
// errors: 3 attempts, 100ms base, exponential backoff.
func RetryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.Multiplier = 2.0
	b.MaxElapsedTime = 0 // bounded by the retry count below, not wall clock
	return backoff.WithContext(backoff.WithMaxRetries(b, 2), ctx) // 2 retries + first attempt = 3 attempts
}

// Retry runs op, retrying on Transient errors per RetryPolicy. Any other
// error (or a Transient error that persists past the final attempt) is
// returned immediately.
func Retry(ctx context.Context, op func() error) error {
	var lastErr error
	wrapped := func() error {
		err := op()
		lastErr = err
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			return err // retry
		}
		return backoff.Permanent(err)
	}
	if err := backoff.Retry(wrapped, RetryPolicy(ctx)); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}
