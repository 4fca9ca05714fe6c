package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration for the pipeline daemon.
type Config struct {
	StorePath   string
	ArtifactDir string
	ProfilePath string
	DetailsPath string
	FiltersPath string
	Analysis    AnalysisConfig
	Generation  GenerationConfig
	Listing     ListingConfig
	Features    FeatureConfig
	Pacing      PacingConfig
	Batch       BatchConfig
}

// AnalysisConfig points at the fit-analysis service.
type AnalysisConfig struct {
	BaseURL      string
	APIKey       string        // expanded from env var by Load
	BackupAPIKey string        // optional fallback credential
	Model        string        // LLM model identifier passed through to the service
	Timeout      time.Duration // per-request timeout
}

// GenerationConfig points at the resume/cover-letter generation service.
type GenerationConfig struct {
	BaseURL      string
	APIKey       string
	BackupAPIKey string
	Model        string
	Theme        string // resume rendering theme passed through to the service
	Timeout      time.Duration
}

// ListingConfig points at the bulk job-listing provider.
type ListingConfig struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
	Cooldown time.Duration // availability-breaker cooldown after hard quota errors
}

// FeatureConfig gates optional pipeline stages.
type FeatureConfig struct {
	CheckSustainability  bool
	SkipDescriptionFetch bool
	CrawlDescriptions    bool // per-job page crawl as the primary description path
}

// PacingConfig controls the cycle controller's sleep behavior and the
// provider throttle.
type PacingConfig struct {
	MinRequestInterval time.Duration // floor between calls to the same provider
	BaseIdle           time.Duration // idle sleep after a no-progress cycle
	MaxIdle            time.Duration // exponential backoff cap
	RateLimitWait      time.Duration // short wait when a rate limit was the only obstacle
}

// BatchConfig holds provider batch-size constants.
type BatchConfig struct {
	BulkQualify         int // minimum batch before a bulk qualification call
	CompanyOverviews    int // max companies per bulk overview fetch
	JobDescriptions     int // max jobs per bulk description fetch
	DescriptionFallback int // failed crawls required before the bulk fallback
	Sustainability      int // companies per classification call
}

type rawConfig struct {
	StorePath   string        `yaml:"store_path"`
	ArtifactDir string        `yaml:"artifact_dir"`
	ProfilePath string        `yaml:"profile_path"`
	DetailsPath string        `yaml:"details_path"`
	FiltersPath string        `yaml:"filters_path"`
	Analysis    rawService    `yaml:"analysis"`
	Generation  rawGeneration `yaml:"generation"`
	Listing     rawListing    `yaml:"listing"`
	Features    rawFeatures   `yaml:"features"`
	Pacing      rawPacing     `yaml:"pacing"`
	Batch       rawBatch      `yaml:"batch"`
}

type rawService struct {
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	BackupAPIKey string `yaml:"backup_api_key"`
	Model        string `yaml:"model"`
	Timeout      string `yaml:"timeout"`
}

type rawGeneration struct {
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	BackupAPIKey string `yaml:"backup_api_key"`
	Model        string `yaml:"model"`
	Theme        string `yaml:"theme"`
	Timeout      string `yaml:"timeout"`
}

type rawListing struct {
	BaseURL  string `yaml:"base_url"`
	APIToken string `yaml:"api_token"`
	Timeout  string `yaml:"timeout"`
	Cooldown string `yaml:"cooldown"`
}

type rawFeatures struct {
	CheckSustainability  bool `yaml:"check_sustainability"`
	SkipDescriptionFetch bool `yaml:"skip_description_fetch"`
	CrawlDescriptions    bool `yaml:"crawl_descriptions"`
}

type rawPacing struct {
	MinRequestInterval string `yaml:"min_request_interval"`
	BaseIdle           string `yaml:"base_idle"`
	MaxIdle            string `yaml:"max_idle"`
	RateLimitWait      string `yaml:"rate_limit_wait"`
}

type rawBatch struct {
	BulkQualify         int `yaml:"bulk_qualify"`
	CompanyOverviews    int `yaml:"company_overviews"`
	JobDescriptions     int `yaml:"job_descriptions"`
	DescriptionFallback int `yaml:"description_fallback"`
	Sustainability      int `yaml:"sustainability"`
}

// Load reads and parses the YAML config file at path, expands environment
// variables, applies defaults, validates, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables so credentials stay out of the file.
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &Config{
		StorePath:   defaultString(raw.StorePath, "jobs.db"),
		ArtifactDir: defaultString(raw.ArtifactDir, "artifacts"),
		ProfilePath: defaultString(raw.ProfilePath, "resume_data.json"),
		DetailsPath: raw.DetailsPath,
		FiltersPath: defaultString(raw.FiltersPath, "filters.yaml"),
		Features: FeatureConfig{
			CheckSustainability:  raw.Features.CheckSustainability,
			SkipDescriptionFetch: raw.Features.SkipDescriptionFetch,
			CrawlDescriptions:    raw.Features.CrawlDescriptions,
		},
		Batch: BatchConfig{
			BulkQualify:         defaultInt(raw.Batch.BulkQualify, 100),
			CompanyOverviews:    defaultInt(raw.Batch.CompanyOverviews, 1000),
			JobDescriptions:     defaultInt(raw.Batch.JobDescriptions, 100),
			DescriptionFallback: defaultInt(raw.Batch.DescriptionFallback, 50),
			Sustainability:      defaultInt(raw.Batch.Sustainability, 10),
		},
	}

	cfg.Analysis = AnalysisConfig{
		BaseURL:      raw.Analysis.BaseURL,
		APIKey:       raw.Analysis.APIKey,
		BackupAPIKey: raw.Analysis.BackupAPIKey,
		Model:        defaultString(raw.Analysis.Model, "gemini-2.5-flash"),
	}
	if cfg.Analysis.Timeout, err = parseDuration("analysis.timeout", raw.Analysis.Timeout, 60*time.Second); err != nil {
		return nil, err
	}

	cfg.Generation = GenerationConfig{
		BaseURL:      raw.Generation.BaseURL,
		APIKey:       raw.Generation.APIKey,
		BackupAPIKey: raw.Generation.BackupAPIKey,
		Model:        defaultString(raw.Generation.Model, cfg.Analysis.Model),
		Theme:        defaultString(raw.Generation.Theme, "engineeringclassic"),
	}
	if cfg.Generation.Timeout, err = parseDuration("generation.timeout", raw.Generation.Timeout, 120*time.Second); err != nil {
		return nil, err
	}

	cfg.Listing = ListingConfig{
		BaseURL:  raw.Listing.BaseURL,
		APIToken: raw.Listing.APIToken,
	}
	if cfg.Listing.Timeout, err = parseDuration("listing.timeout", raw.Listing.Timeout, 120*time.Second); err != nil {
		return nil, err
	}
	if cfg.Listing.Cooldown, err = parseDuration("listing.cooldown", raw.Listing.Cooldown, time.Hour); err != nil {
		return nil, err
	}

	if cfg.Pacing.MinRequestInterval, err = parseDuration("pacing.min_request_interval", raw.Pacing.MinRequestInterval, time.Second); err != nil {
		return nil, err
	}
	if cfg.Pacing.BaseIdle, err = parseDuration("pacing.base_idle", raw.Pacing.BaseIdle, time.Hour); err != nil {
		return nil, err
	}
	if cfg.Pacing.MaxIdle, err = parseDuration("pacing.max_idle", raw.Pacing.MaxIdle, 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Pacing.RateLimitWait, err = parseDuration("pacing.rate_limit_wait", raw.Pacing.RateLimitWait, 5*time.Minute); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Analysis.BaseURL == "" {
		return fmt.Errorf("analysis.base_url is required")
	}
	if cfg.Analysis.APIKey == "" {
		return fmt.Errorf("analysis.api_key is required")
	}
	if cfg.Generation.BaseURL == "" {
		return fmt.Errorf("generation.base_url is required")
	}
	if cfg.Listing.BaseURL == "" && !cfg.Features.CrawlDescriptions {
		return fmt.Errorf("no job source: set listing.base_url or enable features.crawl_descriptions")
	}
	if cfg.Pacing.BaseIdle <= 0 {
		return fmt.Errorf("pacing.base_idle must be positive, got %v", cfg.Pacing.BaseIdle)
	}
	if cfg.Pacing.MaxIdle < cfg.Pacing.BaseIdle {
		return fmt.Errorf("pacing.max_idle (%v) must be at least pacing.base_idle (%v)", cfg.Pacing.MaxIdle, cfg.Pacing.BaseIdle)
	}
	if cfg.Batch.BulkQualify <= 0 {
		return fmt.Errorf("batch.bulk_qualify must be positive, got %d", cfg.Batch.BulkQualify)
	}
	return nil
}

func parseDuration(name, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", name, value, err)
	}
	return d, nil
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func defaultInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
