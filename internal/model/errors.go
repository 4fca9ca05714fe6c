package model

import (
	"errors"
	"fmt"
	"time"
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// ErrRateLimited means both the primary and backup credentials hit a rate
// limit. Callers skip the operation and retry next cycle; it is never
// treated as a hard failure.
var ErrRateLimited = errors.New("rate limited on all credentials")

// ErrUnavailable means the provider's quota circuit breaker is open; bulk
// operations short-circuit to empty results until the cooldown elapses.
var ErrUnavailable = errors.New("provider unavailable (quota cooldown)")
