package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"capaflow/internal/bootstrap/logging"
	"capaflow/internal/errs"
	"capaflow/internal/usecase/capa"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <number>",
	Short: "Record an effectiveness verification; an effective result closes the CAPA",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := cmd.Context()

		input := capa.RecordVerificationInput{
			Number:   cmd.Flags().Arg(0),
			Verifier: stringFlag(cmd, "verifier"),
			Result:   stringFlag(cmd, "result"),
			Notes:    stringFlag(cmd, "notes"),
		}
		if cmd.Flags().Changed("rating") {
			rating, _ := cmd.Flags().GetInt("rating")
			input.Rating = &rating
		}

		record, err := deps.svc.RecordVerification(ctx, input)
		if err != nil {
			logging.Error(ctx, "record verification failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "record verification")
		}
		return writeTransition(cmd, "verified", record)
	}),
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("verifier", "", "Person performing the verification")
	verifyCmd.Flags().String("result", "", "Outcome (effective|partial|not_effective)")
	verifyCmd.Flags().Int("rating", 0, "Effectiveness rating 0-100, required when effective")
	verifyCmd.Flags().String("notes", "", "Optional notes")
	_ = verifyCmd.MarkFlagRequired("verifier")
	_ = verifyCmd.MarkFlagRequired("result")
}
