package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jobtailor/jobtailor/internal/config"
)

var revertFiltersCmd = &cobra.Command{
	Use:   "revert-filters",
	Short: "Undo the last automatic filter adjustment",
	Long:  "Restore location priorities from the snapshot taken before the last automatic promotion.",
	RunE:  runRevertFilters,
}

func init() {
	rootCmd.AddCommand(revertFiltersCmd)
}

func runRevertFilters(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	reverted, err := config.NewFilterStore(cfg.FiltersPath).RevertLocationPromotion()
	if err != nil {
		return err
	}
	if !reverted {
		fmt.Println("nothing to revert")
		return nil
	}
	fmt.Println("location priorities restored")
	return nil
}
