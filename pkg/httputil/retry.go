package httputil

import (
	"context"
	"errors"
	"time"
)

// RetryableError marks an error as transient. The generation client
// wraps network failures and 5xx responses with it so [Retry] attempts
// the call again; anything not wrapped is terminal for the request.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retry runs fn up to attempts times, doubling delay after each failed
// attempt. Only errors wrapped in [RetryableError] are retried; the
// first non-retryable error is returned as-is. If ctx is cancelled
// during a backoff wait, Retry returns ctx.Err(). When every attempt
// fails, the last error is returned.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := 0; i < attempts; i++ {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !isRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

// RetryWithBackoff retries fn with the default policy for generation
// calls: 3 attempts starting at a 1 second delay.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Retry(ctx, 3, time.Second, fn)
}

func isRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}
