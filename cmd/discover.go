package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/SorbetUP/BudgetExplorer/internal/catalog"
	"github.com/SorbetUP/BudgetExplorer/internal/ods"
)

var (
	discoverYear   int
	discoverDomain string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Search the catalog and print the scored selection trace",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if discoverDomain != "" {
			cfg.API.Domain = discoverDomain
		}
		if err := cfg.Validate("discover"); err != nil {
			return err
		}

		client := ods.NewClient(cfg.API.Domain,
			ods.WithPause(time.Duration(cfg.API.PauseMillis)*time.Millisecond),
		)

		trace, err := catalog.Discover(ctx, client, discoverYear, cfg.API.Domain, catalog.DefaultScoring())
		if err != nil {
			return eris.Wrap(err, "discover")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(trace)
	},
}

func init() {
	discoverCmd.Flags().IntVar(&discoverYear, "year", 0, "budget year (required)")
	discoverCmd.Flags().StringVar(&discoverDomain, "domain", "", "portal domain (default from config)")
	_ = discoverCmd.MarkFlagRequired("year")
	rootCmd.AddCommand(discoverCmd)
}
