package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jobtailor/jobtailor/internal/model"
)

func TestDoRetriesTransientOnce(t *testing.T) {
	p := Policy{MaxRetries: 1, BaseDelay: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), "op", func() error {
		calls++
		if calls == 1 {
			return &model.HTTPError{StatusCode: 502, Err: errors.New("bad gateway")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("got %d calls, want 2", calls)
	}
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	p := Policy{MaxRetries: 1, BaseDelay: time.Millisecond}

	calls := 0
	wantErr := &model.HTTPError{StatusCode: 503, Err: errors.New("unavailable")}
	err := p.Do(context.Background(), "op", func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
	if calls != 2 {
		t.Fatalf("got %d calls, want 2", calls)
	}
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"bad request", &model.HTTPError{StatusCode: 400, Err: errors.New("bad request")}},
		{"rate limited", fmt.Errorf("call: %w", model.ErrRateLimited)},
		{"unavailable", model.ErrUnavailable},
		{"cancelled", context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Policy{MaxRetries: 3, BaseDelay: time.Millisecond}
			calls := 0
			err := p.Do(context.Background(), "op", func() error {
				calls++
				return tt.err
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if calls != 1 {
				t.Fatalf("got %d calls, want 1", calls)
			}
		})
	}
}

func TestBackoffDelayHonorsRetryAfter(t *testing.T) {
	p := Policy{MaxRetries: 1, BaseDelay: time.Second}
	err := &model.HTTPError{StatusCode: 503, RetryAfter: 7 * time.Second, Err: errors.New("busy")}

	if got := p.backoffDelay(1, err); got != 7*time.Second {
		t.Fatalf("got %v, want 7s", got)
	}
}

func TestBackoffDelayJitterBounds(t *testing.T) {
	p := Policy{MaxRetries: 3, BaseDelay: time.Second}
	plain := errors.New("network down")

	for attempt := 1; attempt <= 3; attempt++ {
		base := p.BaseDelay
		for i := 1; i < attempt; i++ {
			base *= 2
		}
		lo := time.Duration(float64(base) * 0.7)
		hi := time.Duration(float64(base) * 1.3)

		for i := 0; i < 50; i++ {
			d := p.backoffDelay(attempt, plain)
			if d < lo || d > hi {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, lo, hi)
			}
		}
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &model.HTTPError{StatusCode: 500, Err: errors.New("x")}, true},
		{"bad gateway", &model.HTTPError{StatusCode: 502, Err: errors.New("x")}, true},
		{"too many requests", &model.HTTPError{StatusCode: 429, Err: errors.New("x")}, false},
		{"not found", &model.HTTPError{StatusCode: 404, Err: errors.New("x")}, false},
		{"network", errors.New("connection refused"), true},
		{"rate limited sentinel", model.ErrRateLimited, false},
		{"deadline", context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
