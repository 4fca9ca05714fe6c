package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jobtailor/jobtailor/internal/model"
	"github.com/jobtailor/jobtailor/internal/ratelimit"
	"github.com/jobtailor/jobtailor/internal/retry"
)

// ClientOptions configures a gateway client.
type ClientOptions struct {
	BaseURL      string
	APIKey       string
	BackupAPIKey string
	Model        string
	Timeout      time.Duration
	// Provider is the throttle key; clients sharing a throttle but naming
	// different providers are paced independently.
	Provider string
}

// Client talks to the LLM gateway. Every request carries the LLM credential
// in the payload; the gateway proxies it upstream. The client owns the
// credential-fallback strategy: primary key first, backup once on a rate
// limit, both limited means ErrRateLimited ("skip, try next cycle").
type Client struct {
	opts       ClientOptions
	httpClient *http.Client
	throttle   *ratelimit.Throttle
	retry      retry.Policy
	logger     *slog.Logger
}

// NewClient creates a gateway client. The throttle may be shared across
// clients; pass distinct Provider names to pace them separately.
func NewClient(opts ClientOptions, throttle *ratelimit.Throttle, logger *slog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: timeout},
		throttle:   throttle,
		retry:      retry.Default(logger),
		logger:     logger,
	}
}

// Model returns the configured LLM model identifier.
func (c *Client) Model() string { return c.opts.Model }

// Post sends payload to the gateway endpoint at path and decodes the JSON
// response into out. The payload map is augmented with the credential and
// model; callers must not set those keys themselves.
func (c *Client) Post(ctx context.Context, path string, payload map[string]any, out any) error {
	keys := []struct {
		name string
		key  string
	}{
		{"primary", c.opts.APIKey},
		{"backup", c.opts.BackupAPIKey},
	}

	for _, k := range keys {
		if k.key == "" {
			continue
		}

		if err := c.throttle.Wait(ctx, c.opts.Provider); err != nil {
			return err
		}

		body, err := c.do(ctx, path, payload, k.key)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("parse %s response: %w", path, err)
			}
			return nil
		}

		var httpErr *model.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
			c.logger.Warn("rate limit hit", "endpoint", path, "credential", k.name)
			continue
		}
		return err
	}

	return fmt.Errorf("%s: %w", path, model.ErrRateLimited)
}

// do performs one POST with one credential, retrying transient upstream
// failures (502 and friends) per the shared policy.
func (c *Client) do(ctx context.Context, path string, payload map[string]any, key string) ([]byte, error) {
	full := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		full[k] = v
	}
	full["llm_api_key"] = key
	full["model_name"] = c.opts.Model

	reqBody, err := json.Marshal(full)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", path, err)
	}

	var respBody []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, bytes.NewReader(reqBody))
		if err != nil {
			return fmt.Errorf("create %s request: %w", path, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s request: %w", path, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read %s response: %w", path, err)
		}

		if resp.StatusCode != http.StatusOK {
			return &model.HTTPError{
				StatusCode: resp.StatusCode,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				Err:        fmt.Errorf("%s: %s", path, truncate(body, 200)),
			}
		}

		respBody = body
		return nil
	}

	if err := c.retry.Do(ctx, path, op); err != nil {
		return nil, err
	}
	return respBody, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	var secs int
	if _, err := fmt.Sscanf(v, "%d", &secs); err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
