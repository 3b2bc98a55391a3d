package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"capaflow/internal/bootstrap/logging"
	"capaflow/internal/errs"
	"capaflow/internal/usecase/capa"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Replay a TOML plan of CAPAs, action items and verifications",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := cmd.Context()

		path := strings.TrimSpace(stringFlag(cmd, "file"))
		ctx = logging.WithAttrs(ctx, slog.String("plan_file", path))

		plan, err := capa.LoadImportPlan(path)
		if err != nil {
			logging.Error(ctx, "load import plan failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "load import plan")
		}

		result, err := deps.svc.Import(ctx, plan)
		for _, number := range result.Created {
			if _, writeErr := fmt.Fprintf(cmd.OutOrStdout(), "imported capa: %s\n", number); writeErr != nil {
				return errs.Wrap(writeErr, "write import output")
			}
		}
		if err != nil {
			logging.Error(ctx, "import plan failed", slog.Int("created", len(result.Created)), slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "import plan")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("file", "plan.toml", "Path to the import plan")
}
