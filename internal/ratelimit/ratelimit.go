package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Throttle enforces a minimum delay between requests to the same logical
// provider, sleeping a small random jitter on top of the floor so request
// timing never looks mechanical.
type Throttle struct {
	mu       sync.Mutex
	lastCall map[string]time.Time // key: provider name
	minDelay time.Duration
}

// NewThrottle creates a throttle with the given floor between consecutive
// requests to the same provider.
func NewThrottle(minDelay time.Duration) *Throttle {
	return &Throttle{
		lastCall: make(map[string]time.Time),
		minDelay: minDelay,
	}
}

// Wait blocks until enough time has passed since the last request to the
// given provider. Returns an error if the context is cancelled while waiting.
func (t *Throttle) Wait(ctx context.Context, provider string) error {
	t.mu.Lock()
	last, ok := t.lastCall[provider]
	now := time.Now()

	if !ok || now.Sub(last) >= t.minDelay {
		t.lastCall[provider] = now
		t.mu.Unlock()
		return nil
	}

	remaining := t.minDelay - now.Sub(last)
	// Jittered remainder: between half and the full gap left.
	sleep := remaining/2 + time.Duration(rand.Int64N(int64(remaining/2)+1))
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("throttle wait for %s: %w", provider, ctx.Err())
	case <-time.After(sleep):
	}

	t.mu.Lock()
	t.lastCall[provider] = time.Now()
	t.mu.Unlock()

	return nil
}

// Availability is a provider-level circuit breaker. Once a hard quota error
// is observed it reports unavailable until the cooldown elapses, at which
// point a single retry is allowed to re-validate.
type Availability struct {
	mu          sync.Mutex
	available   bool
	lastFailure time.Time
	cooldown    time.Duration
	now         func() time.Time // injectable for tests
}

// NewAvailability creates a breaker that stays open for cooldown after each
// failure. A zero cooldown defaults to one hour.
func NewAvailability(cooldown time.Duration) *Availability {
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	return &Availability{
		available: true,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Available reports whether the provider may be called. When the cooldown
// has elapsed since the last failure the breaker closes again so the next
// call can probe the provider.
func (a *Availability) Available() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.available && a.now().Sub(a.lastFailure) > a.cooldown {
		a.available = true
		a.lastFailure = time.Time{}
	}
	return a.available
}

// MarkUnavailable opens the breaker, starting the cooldown timer.
func (a *Availability) MarkUnavailable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.available = false
	a.lastFailure = a.now()
}

// Reset closes the breaker immediately.
func (a *Availability) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.available = true
	a.lastFailure = time.Time{}
}

// SetClock replaces the breaker's clock. Test helper.
func (a *Availability) SetClock(now func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
}
