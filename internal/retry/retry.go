package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jobtailor/jobtailor/internal/model"
)

// Policy is a reusable retry policy for transient failures: exponential
// backoff with jitter, applied uniformly by every service client instead of
// per-call-site loops.
type Policy struct {
	MaxRetries int           // additional attempts after the first failure
	BaseDelay  time.Duration // delay before the first retry, doubled each retry
	Logger     *slog.Logger
}

// Default is the policy the service clients share: one immediate-ish retry
// with a short randomized delay, matching upstream 502 behavior.
func Default(logger *slog.Logger) Policy {
	return Policy{MaxRetries: 1, BaseDelay: 2 * time.Second, Logger: logger}
}

// Do runs op, retrying transient failures per the policy. The op name is
// used only for logging.
func (p Policy) Do(ctx context.Context, name string, op func() error) error {
	err := op()
	if err == nil {
		return nil
	}
	if !IsTransient(err) {
		return err
	}

	lastErr := err
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		delay := p.backoffDelay(attempt, lastErr)

		if p.Logger != nil {
			p.Logger.Warn("retrying after transient error",
				"op", name,
				"attempt", attempt,
				"max_retries", p.MaxRetries,
				"delay", delay,
				"error", lastErr,
			)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		if err := op(); err == nil {
			return nil
		} else if !IsTransient(err) {
			return err
		} else {
			lastErr = err
		}
	}

	return lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration, that takes precedence.
func (p Policy) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	// Exponential: BaseDelay * 2^(attempt-1)
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)

	return delay
}

// IsTransient reports whether the error represents a transient failure
// worth retrying. Rate limits are not transient here: they are handled by
// credential fallback, not by blind retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, model.ErrRateLimited) || errors.Is(err, model.ErrUnavailable) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		// 5xx is retryable.
		if httpErr.StatusCode >= 500 {
			return true
		}
		// 4xx is not retryable; 429 is handled by credential fallback.
		return false
	}

	// Non-HTTP errors (network, DNS, etc.) are retryable.
	return true
}
