package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"capaflow/internal/bootstrap/logging"
	"capaflow/internal/errs"
	"capaflow/internal/usecase/capa"
)

var actionCmd = &cobra.Command{
	Use:   "action",
	Short: "Manage action items on a CAPA",
}

var actionAddCmd = &cobra.Command{
	Use:   "add <number>",
	Short: "Attach a pending action item to a CAPA",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := cmd.Context()

		dueDate, err := requiredDateFlag(cmd, "due")
		if err != nil {
			return err
		}

		item, err := deps.svc.AddActionItem(ctx, capa.AddActionItemInput{
			Number:      cmd.Flags().Arg(0),
			Description: stringFlag(cmd, "description"),
			Assignee:    stringFlag(cmd, "assignee"),
			DueDate:     dueDate,
			Notes:       stringFlag(cmd, "notes"),
		})
		if err != nil {
			logging.Error(ctx, "add action item failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "add action item")
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), map[string]any{"id": item.ID, "status": string(item.Status)})
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "added action item: %d status=%s\n", item.ID, item.Status); err != nil {
			return errs.Wrap(err, "write add output")
		}
		return nil
	}),
}

var actionStatusCmd = &cobra.Command{
	Use:   "status <number>",
	Short: "Change the status of an action item",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := cmd.Context()

		itemID, _ := cmd.Flags().GetUint64("item")
		record, err := deps.svc.UpdateActionItemStatus(ctx, capa.UpdateActionItemStatusInput{
			Number: cmd.Flags().Arg(0),
			ItemID: itemID,
			Status: stringFlag(cmd, "status"),
		})
		if err != nil {
			logging.Error(ctx, "update action item status failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "update action item status")
		}
		return writeTransition(cmd, "updated", record)
	}),
}

func init() {
	rootCmd.AddCommand(actionCmd)
	actionCmd.AddCommand(actionAddCmd, actionStatusCmd)

	actionAddCmd.Flags().String("description", "", "What has to be done")
	actionAddCmd.Flags().String("assignee", "", "Who does it")
	actionAddCmd.Flags().String("due", "", "Due date (YYYY-MM-DD)")
	actionAddCmd.Flags().String("notes", "", "Optional notes")
	_ = actionAddCmd.MarkFlagRequired("description")
	_ = actionAddCmd.MarkFlagRequired("assignee")
	_ = actionAddCmd.MarkFlagRequired("due")

	actionStatusCmd.Flags().Uint64("item", 0, "Action item id")
	actionStatusCmd.Flags().String("status", "", "New status (pending|in_progress|completed|overdue)")
	_ = actionStatusCmd.MarkFlagRequired("item")
	_ = actionStatusCmd.MarkFlagRequired("status")
}
