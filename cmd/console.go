package cmd

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"capaflow/internal/errs"
	"capaflow/internal/usecase/capaconsole"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Terminal console commands",
}

var consoleBoardCmd = &cobra.Command{
	Use:   "board",
	Short: "Start the interactive CAPA board",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := cmd.Context()

		overdueOnly, _ := cmd.Flags().GetBool("overdue")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		if refreshInterval <= 0 {
			refreshInterval = 5 * time.Second
		}

		model := capaconsole.NewBoardModel(ctx, deps.svc, capaconsole.BoardOptions{
			Assignee:        stringFlag(cmd, "assignee"),
			StatusFilter:    stringFlag(cmd, "status"),
			OverdueOnly:     overdueOnly,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run capa board")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.AddCommand(consoleBoardCmd)

	consoleBoardCmd.Flags().String("assignee", "", "Optional assignee filter")
	consoleBoardCmd.Flags().String("status", "", "Optional status filter (draft|open|in_progress|verification|closed|cancelled)")
	consoleBoardCmd.Flags().Bool("overdue", false, "Only overdue CAPAs")
	consoleBoardCmd.Flags().Duration("refresh-interval", 5*time.Second, "Auto refresh interval")
}
