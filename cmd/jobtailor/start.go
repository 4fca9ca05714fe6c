package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jobtailor/jobtailor/internal/pipeline"
	"github.com/jobtailor/jobtailor/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the pipeline daemon",
	Long:  "Run processing cycles continuously; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"store", cfg.StorePath,
		"artifacts", cfg.ArtifactDir,
		"model", cfg.Analysis.Model,
		"check_sustainability", cfg.Features.CheckSustainability,
		"crawl_descriptions", cfg.Features.CrawlDescriptions,
	)

	sqlStore, err := store.NewSQLiteStore(cfg.StorePath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	p, err := buildPipeline(cfg, sqlStore, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	controller := pipeline.NewController(p, cfg.Pacing, logger)
	if err := controller.Run(ctx); err != nil {
		logger.Error("controller error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
