package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SorbetUP/BudgetExplorer/internal/ods"
	"github.com/SorbetUP/BudgetExplorer/internal/ofgl"
	"github.com/SorbetUP/BudgetExplorer/internal/pipeline"
)

var (
	fetchYear   int
	fetchOut    string
	fetchDomain string
	fetchOFGL   bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run the full pipeline for a budget year",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if fetchOut != "" {
			cfg.Output.Dir = fetchOut
		}
		if fetchDomain != "" {
			cfg.API.Domain = fetchDomain
		}
		if fetchOFGL {
			cfg.OFGL.Enabled = true
		}
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		opts := []pipeline.Option{}
		if st != nil {
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
			opts = append(opts, pipeline.WithStore(st))
		}
		if cfg.OFGL.Enabled {
			opts = append(opts, pipeline.WithOFGL(ofgl.NewClient(cfg.OFGL.Domain)))
		}

		client := ods.NewClient(cfg.API.Domain,
			ods.WithPause(time.Duration(cfg.API.PauseMillis)*time.Millisecond),
			ods.WithPageSize(cfg.API.PageSize),
		)

		p := pipeline.New(cfg, client, opts...)
		result, err := p.Run(ctx, fetchYear)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("fetch complete",
			zap.Int("year", fetchYear),
			zap.Int("artifacts", len(result.Artifacts)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	fetchCmd.Flags().IntVar(&fetchYear, "year", 0, "budget year (required)")
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "artifact output directory (default from config)")
	fetchCmd.Flags().StringVar(&fetchDomain, "domain", "", "portal domain (default from config)")
	fetchCmd.Flags().BoolVar(&fetchOFGL, "ofgl", false, "also pull local-finances datasets")
	_ = fetchCmd.MarkFlagRequired("year")
	rootCmd.AddCommand(fetchCmd)
}
