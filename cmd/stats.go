package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"capaflow/internal/bootstrap/logging"
	"capaflow/internal/errs"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize CAPAs by type and workflow bucket",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := cmd.Context()

		stats, err := deps.svc.Statistics(ctx)
		if err != nil {
			logging.Error(ctx, "compute statistics failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "compute statistics")
		}
		return renderStatistics(cmd.OutOrStdout(), stats)
	}),
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
