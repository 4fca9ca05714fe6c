package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jobtailor/jobtailor/internal/model"
	"github.com/jobtailor/jobtailor/internal/ratelimit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientOptions{
		BaseURL:      srv.URL,
		APIKey:       "primary-key",
		BackupAPIKey: "backup-key",
		Model:        "test-model",
		Provider:     "test",
	}, ratelimit.NewThrottle(time.Millisecond), testLogger())
}

func TestPostInjectsCredentialAndModel(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]string{"analysis": "ok"})
	})

	var resp struct {
		Analysis string `json:"analysis"`
	}
	if err := c.Post(context.Background(), "/analyze-job-posting", map[string]any{"x": "y"}, &resp); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if got["llm_api_key"] != "primary-key" {
		t.Errorf("llm_api_key = %v, want primary-key", got["llm_api_key"])
	}
	if got["model_name"] != "test-model" {
		t.Errorf("model_name = %v, want test-model", got["model_name"])
	}
	if resp.Analysis != "ok" {
		t.Errorf("analysis = %q", resp.Analysis)
	}
}

func TestPostFallsBackToBackupKeyOn429(t *testing.T) {
	var keys []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		key := body["llm_api_key"].(string)
		keys = append(keys, key)
		if key == "primary-key" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"analysis": "via backup"})
	})

	var resp struct {
		Analysis string `json:"analysis"`
	}
	if err := c.Post(context.Background(), "/analyze-job-posting", nil, &resp); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.Analysis != "via backup" {
		t.Errorf("analysis = %q, want backup response", resp.Analysis)
	}
	if len(keys) != 2 || keys[0] != "primary-key" || keys[1] != "backup-key" {
		t.Errorf("credential order = %v", keys)
	}
}

func TestPostBothKeysRateLimited(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	err := c.Post(context.Background(), "/bulk-qualify", nil, &struct{}{})
	if !errors.Is(err, model.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestPostRetriesOnce502(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"analysis": "recovered"})
	})
	c.retry.BaseDelay = time.Millisecond

	var resp struct {
		Analysis string `json:"analysis"`
	}
	if err := c.Post(context.Background(), "/analyze-job-posting", nil, &resp); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestPostFailsFastOnClientError(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	})

	err := c.Post(context.Background(), "/analyze-job-posting", nil, &struct{}{})
	if err == nil {
		t.Fatal("expected error on 400")
	}
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadRequest {
		t.Errorf("err = %v, want HTTPError 400", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 4xx)", calls)
	}
}
