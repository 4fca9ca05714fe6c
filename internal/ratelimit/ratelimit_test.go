package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestThrottleFirstCallDoesNotBlock(t *testing.T) {
	th := NewThrottle(time.Hour)

	start := time.Now()
	if err := th.Wait(context.Background(), "provider"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("first call blocked for %v", elapsed)
	}
}

func TestThrottleSeparatesProviders(t *testing.T) {
	th := NewThrottle(time.Hour)

	if err := th.Wait(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := th.Wait(context.Background(), "b"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("unrelated provider blocked for %v", elapsed)
	}
}

func TestThrottleWaitCancellable(t *testing.T) {
	th := NewThrottle(time.Hour)
	if err := th.Wait(context.Background(), "provider"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := th.Wait(ctx, "provider"); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestAvailabilityCooldown(t *testing.T) {
	now := time.Now()
	a := NewAvailability(time.Hour)
	a.SetClock(func() time.Time { return now })

	if !a.Available() {
		t.Fatal("breaker must start closed")
	}

	a.MarkUnavailable()
	if a.Available() {
		t.Fatal("breaker open right after failure")
	}

	now = now.Add(30 * time.Minute)
	if a.Available() {
		t.Fatal("breaker reopened before cooldown elapsed")
	}

	now = now.Add(31 * time.Minute)
	if !a.Available() {
		t.Fatal("breaker still open after cooldown")
	}
}

func TestAvailabilityReset(t *testing.T) {
	a := NewAvailability(time.Hour)
	a.MarkUnavailable()
	a.Reset()
	if !a.Available() {
		t.Fatal("breaker open after reset")
	}
}
