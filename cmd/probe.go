package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/SorbetUP/BudgetExplorer/internal/ods"
)

var probeYear int

var probeCmd = &cobra.Command{
	Use:   "probe <dataset-id>",
	Short: "Inspect a dataset's fields and the year filter that would apply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("probe"); err != nil {
			return err
		}

		client := ods.NewClient(cfg.API.Domain,
			ods.WithPause(time.Duration(cfg.API.PauseMillis)*time.Millisecond),
		)

		fields, err := ods.ProbeFields(ctx, client, args[0])
		if err != nil {
			return eris.Wrapf(err, "probe %s", args[0])
		}

		out := struct {
			Dataset   string   `json:"dataset"`
			Fields    []string `json:"fields"`
			YearWhere string   `json:"year_where,omitempty"`
		}{
			Dataset: args[0],
			Fields:  fields,
		}
		if probeYear > 0 {
			out.YearWhere = ods.BuildYearWhere(probeYear, fields)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	probeCmd.Flags().IntVar(&probeYear, "year", 0, "year to build the filter expression for")
	rootCmd.AddCommand(probeCmd)
}
