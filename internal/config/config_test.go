package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
analysis:
  base_url: https://gateway.example.com
  api_key: test-key
generation:
  base_url: https://gateway.example.com
listing:
  base_url: https://listing.example.com
  api_token: tok
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.StorePath != "jobs.db" || cfg.ArtifactDir != "artifacts" {
		t.Fatalf("got store=%q artifacts=%q", cfg.StorePath, cfg.ArtifactDir)
	}
	if cfg.Analysis.Model != "gemini-2.5-flash" {
		t.Fatalf("got model %q", cfg.Analysis.Model)
	}
	if cfg.Generation.Theme != "engineeringclassic" {
		t.Fatalf("got theme %q", cfg.Generation.Theme)
	}
	if cfg.Pacing.BaseIdle != time.Hour || cfg.Pacing.MaxIdle != 24*time.Hour {
		t.Fatalf("got base_idle=%v max_idle=%v", cfg.Pacing.BaseIdle, cfg.Pacing.MaxIdle)
	}
	if cfg.Pacing.RateLimitWait != 5*time.Minute {
		t.Fatalf("got rate_limit_wait=%v", cfg.Pacing.RateLimitWait)
	}
	if cfg.Batch.BulkQualify != 100 || cfg.Batch.CompanyOverviews != 1000 ||
		cfg.Batch.DescriptionFallback != 50 || cfg.Batch.Sustainability != 10 {
		t.Fatalf("got batch %+v", cfg.Batch)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_GATEWAY_KEY", "secret-from-env")
	cfg, err := Load(writeConfig(t, `
analysis:
  base_url: https://gateway.example.com
  api_key: ${TEST_GATEWAY_KEY}
generation:
  base_url: https://gateway.example.com
listing:
  base_url: https://listing.example.com
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Analysis.APIKey != "secret-from-env" {
		t.Fatalf("got api key %q", cfg.Analysis.APIKey)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing analysis url", `
analysis:
  api_key: k
generation:
  base_url: https://g
listing:
  base_url: https://l
`},
		{"missing api key", `
analysis:
  base_url: https://a
generation:
  base_url: https://g
listing:
  base_url: https://l
`},
		{"no job source", `
analysis:
  base_url: https://a
  api_key: k
generation:
  base_url: https://g
`},
		{"bad duration", `
analysis:
  base_url: https://a
  api_key: k
  timeout: soon
generation:
  base_url: https://g
listing:
  base_url: https://l
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadCrawlOnlyNeedsNoListing(t *testing.T) {
	_, err := Load(writeConfig(t, `
analysis:
  base_url: https://a
  api_key: k
generation:
  base_url: https://g
features:
  crawl_descriptions: true
`))
	if err != nil {
		t.Fatal(err)
	}
}
