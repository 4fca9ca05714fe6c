package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jobtailor/jobtailor/internal/analysis"
	"github.com/jobtailor/jobtailor/internal/artifact"
	"github.com/jobtailor/jobtailor/internal/config"
	"github.com/jobtailor/jobtailor/internal/listing"
	"github.com/jobtailor/jobtailor/internal/model"
	"github.com/jobtailor/jobtailor/internal/pipeline"
	"github.com/jobtailor/jobtailor/internal/profile"
	"github.com/jobtailor/jobtailor/internal/ratelimit"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobtailor",
	Short: "Discover, score, and tailor job applications",
	Long:  "JobTailor discovers job postings, scores them against your resume, and generates tailored application artifacts.",
	// Default to `start` so that `jobtailor` with no args runs the daemon.
	// This preserves compatibility with systemd unit files that invoke the binary directly.
	RunE: runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBTAILOR_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBTAILOR_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBTAILOR_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// buildPipeline wires every collaborator the pipeline needs from config.
// The store is passed in so callers pick persistence (SQLite for the
// daemon, in-memory for one-shot checks).
func buildPipeline(cfg *config.Config, recordStore model.RecordStore, logger *slog.Logger) (*pipeline.Pipeline, error) {
	resume, err := profile.Load(cfg.ProfilePath, cfg.DetailsPath)
	if err != nil {
		return nil, err
	}

	throttle := ratelimit.NewThrottle(cfg.Pacing.MinRequestInterval)

	analysisClient := analysis.NewClient(analysis.ClientOptions{
		BaseURL:      cfg.Analysis.BaseURL,
		APIKey:       cfg.Analysis.APIKey,
		BackupAPIKey: cfg.Analysis.BackupAPIKey,
		Model:        cfg.Analysis.Model,
		Timeout:      cfg.Analysis.Timeout,
		Provider:     "analysis",
	}, throttle, logger)

	generationClient := analysis.NewClient(analysis.ClientOptions{
		BaseURL:      cfg.Generation.BaseURL,
		APIKey:       cfg.Generation.APIKey,
		BackupAPIKey: cfg.Generation.BackupAPIKey,
		Model:        cfg.Generation.Model,
		Timeout:      cfg.Generation.Timeout,
		Provider:     "generation",
	}, throttle, logger)

	files, err := artifact.NewLocalFiles(cfg.ArtifactDir)
	if err != nil {
		return nil, err
	}

	var provider model.ListingProvider
	if cfg.Listing.BaseURL != "" {
		availability := ratelimit.NewAvailability(cfg.Listing.Cooldown)
		provider = listing.NewBulkProvider(cfg.Listing.BaseURL, cfg.Listing.APIToken,
			cfg.Listing.Timeout, availability, throttle, logger)
	}

	var crawler model.PageCrawler
	if cfg.Features.CrawlDescriptions {
		crawler = listing.NewCrawler(cfg.Listing.Timeout, throttle, logger)
	}

	return pipeline.New(pipeline.Deps{
		Store:     recordStore,
		Filters:   config.NewFilterStore(cfg.FiltersPath),
		Provider:  provider,
		Crawler:   crawler,
		Analysis:  analysis.NewService(analysisClient, logger),
		Artifacts: artifact.NewGenerator(generationClient, cfg.Generation.Theme, logger),
		Files:     files,
		Resume:    resume,
		Features:  cfg.Features,
		Batch:     cfg.Batch,
		Logger:    logger,
	}), nil
}
