package httpclient

import (
	"time"

	pkgerrors "grantio/grantscraper/pkg/errors"
)

// RetryPolicy decides how failed requests are repeated. It is an explicit
// value injected into the client rather than behavior baked into it.
type RetryPolicy struct {
	// MaxAttempts caps total tries, first attempt included
	MaxAttempts int
	// Backoff returns the wait before the given retry (1-based)
	Backoff func(attempt int) time.Duration
	// Retryable reports whether the error class may be retried
	Retryable func(err error) bool
}

// DefaultRetryPolicy retries timeout/connection failures up to 3 attempts
// with exponential backoff capped at 10s. HTTP status errors never retry.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     ExponentialBackoff(time.Second, 10*time.Second),
		Retryable:   pkgerrors.IsRetryable,
	}
}

// ExponentialBackoff doubles the base wait per retry up to max
func ExponentialBackoff(base, max time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		d := base << (attempt - 1)
		if d > max || d <= 0 {
			return max
		}
		return d
	}
}

// NoRetry is a policy performing exactly one attempt
func NoRetry() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 1,
		Backoff:     func(int) time.Duration { return 0 },
		Retryable:   func(error) bool { return false },
	}
}
