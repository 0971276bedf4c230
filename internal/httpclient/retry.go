package httpclient

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// permanentError marks a failure that retrying cannot fix (4xx, bad payload).
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so RetryWithBackoff returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryWithBackoff retries fn with exponential backoff and jitter.
// Stops retrying immediately if fn returns an error wrapped with Permanent.
//
// maxRetries: maximum number of retry attempts (0 = no retry, just try once)
// initialDelay: delay before the first retry
//
// Backoff formula: delay = initialDelay * 2^attempt ± 25% jitter
// Example with initialDelay=500ms, maxRetries=3:
//
//	attempt 0: immediate (first try)
//	attempt 1: ~500ms (375ms - 625ms)
//	attempt 2: ~1s    (750ms - 1.25s)
//	attempt 3: ~2s    (1.5s - 2.5s)
func RetryWithBackoff(ctx context.Context, maxRetries int, initialDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var permErr *permanentError
		if errors.As(err, &permErr) {
			return permErr.Unwrap()
		}

		if attempt == maxRetries {
			break
		}

		if err := Sleep(ctx, backoffDelay(initialDelay, attempt)); err != nil {
			return err
		}
	}

	return lastErr
}

// backoffDelay returns initialDelay * 2^attempt with ±25% jitter.
func backoffDelay(initialDelay time.Duration, attempt int) time.Duration {
	delay := time.Duration(float64(initialDelay) * math.Pow(2, float64(attempt)))
	half := int64(delay) / 2
	if half <= 0 {
		return delay
	}
	return delay - delay/4 + time.Duration(rand.Int64N(half))
}

// Sleep waits for the specified duration, respecting context cancellation
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
