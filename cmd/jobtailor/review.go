package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/jobtailor/jobtailor/internal/review"
	"github.com/jobtailor/jobtailor/internal/store"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Browse scored jobs interactively (TUI)",
	Long:  "Split-pane review of the job table: all visible records on the left, the qualifying shortlist on the right. Flags toggled here write through to the database.",
	RunE:  runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	sqlStore, err := store.NewSQLiteStore(cfg.StorePath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	return review.Run(context.Background(), sqlStore, cfg.Features.CheckSustainability)
}
