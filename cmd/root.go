package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SorbetUP/BudgetExplorer/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "budget-explorer",
	Short: "French state budget open-data pipeline",
	Long:  "Discovers the PLF/LFI datasets for a budget year on data.economie.gouv.fr, normalizes their rows and writes aggregated JSON artifacts.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
