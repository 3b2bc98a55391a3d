package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"capaflow/internal/bootstrap/logging"
	domaincapa "capaflow/internal/domain/capa"
	"capaflow/internal/errs"
	"capaflow/internal/ports"
	"capaflow/internal/usecase/capa"
)

var capaCmd = &cobra.Command{
	Use:   "capa",
	Short: "Create, inspect and administer CAPA records",
}

var capaCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a CAPA in draft status",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := cmd.Context()

		targetDate, err := optionalDateFlag(cmd, "target-date")
		if err != nil {
			return err
		}

		input := capa.CreateCAPAInput{
			Title:              stringFlag(cmd, "title"),
			Type:               domaincapa.Type(stringFlag(cmd, "type")),
			Priority:           domaincapa.Priority(stringFlag(cmd, "priority")),
			Category:           domaincapa.Category(stringFlag(cmd, "category")),
			SourceType:         domaincapa.SourceType(stringFlag(cmd, "source-type")),
			SourceReference:    stringFlag(cmd, "source-ref"),
			ProblemStatement:   stringFlag(cmd, "problem"),
			Description:        stringFlag(cmd, "description"),
			RootCause:          stringFlag(cmd, "root-cause"),
			ProposedActions:    stringFlag(cmd, "proposed-actions"),
			TargetDate:         targetDate,
			Assignee:           stringFlag(cmd, "assignee"),
			Owner:              stringFlag(cmd, "owner"),
			VerificationMethod: stringFlag(cmd, "verification-method"),
		}
		input.RelatedNCRs, _ = cmd.Flags().GetStringSlice("ncr")

		record, err := deps.svc.CreateCAPA(ctx, input)
		if err != nil {
			logging.Error(ctx, "create capa failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create capa")
		}

		if jsonOutput {
			detail, err := deps.svc.GetCAPA(ctx, record.Number)
			if err != nil {
				return errs.Wrap(err, "load created capa")
			}
			return renderCAPADetail(cmd.OutOrStdout(), detail)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "created capa: %s status=%s\n", record.Number, record.Status); err != nil {
			return errs.Wrap(err, "write create output")
		}
		return nil
	}),
}

var capaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List CAPAs with optional filters",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := cmd.Context()

		rawStatuses, _ := cmd.Flags().GetStringSlice("status")
		statuses := make([]domaincapa.Status, 0, len(rawStatuses))
		for _, raw := range rawStatuses {
			status, ok := domaincapa.ParseStatus(raw)
			if !ok {
				return fmt.Errorf("invalid --status %q", raw)
			}
			statuses = append(statuses, status)
		}
		activeOnly, _ := cmd.Flags().GetBool("active")
		overdueOnly, _ := cmd.Flags().GetBool("overdue")

		items, err := deps.svc.ListCAPAs(ctx, capa.ListCAPAsInput{
			Filter: ports.CAPAFilter{
				Statuses:   statuses,
				Type:       domaincapa.Type(strings.ToLower(stringFlag(cmd, "type"))),
				Priority:   domaincapa.Priority(strings.ToLower(stringFlag(cmd, "priority"))),
				Category:   domaincapa.Category(strings.ToLower(stringFlag(cmd, "category"))),
				Assignee:   stringFlag(cmd, "assignee"),
				Search:     stringFlag(cmd, "search"),
				OnlyActive: activeOnly,
			},
			OverdueOnly: overdueOnly,
		})
		if err != nil {
			logging.Error(ctx, "list capas failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list capas")
		}
		return renderCAPAList(cmd.OutOrStdout(), items)
	}),
}

var capaShowCmd = &cobra.Command{
	Use:   "show <number>",
	Short: "Show a CAPA with its action items and verification history",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := cmd.Context()

		detail, err := deps.svc.GetCAPA(ctx, cmd.Flags().Arg(0))
		if err != nil {
			logging.Error(ctx, "show capa failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "show capa")
		}
		return renderCAPADetail(cmd.OutOrStdout(), detail)
	}),
}

var capaStatusCmd = &cobra.Command{
	Use:   "status <number>",
	Short: "Print the current workflow status of a CAPA",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := cmd.Context()
		number := cmd.Flags().Arg(0)

		status, err := deps.svc.CachedStatus(ctx, number)
		if err != nil {
			logging.Error(ctx, "read capa status failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "read capa status")
		}

		if jsonOutput {
			canonical, _ := domaincapa.ParseNumber(number)
			return writeJSON(cmd.OutOrStdout(), map[string]string{"number": canonical, "status": string(status)})
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), status); err != nil {
			return errs.Wrap(err, "write status output")
		}
		return nil
	}),
}

var capaOpenCmd = &cobra.Command{
	Use:   "open <number>",
	Short: "Move a draft CAPA to open",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := cmd.Context()

		record, err := deps.svc.OpenCAPA(ctx, cmd.Flags().Arg(0))
		if err != nil {
			logging.Error(ctx, "open capa failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "open capa")
		}
		return writeTransition(cmd, "opened", record)
	}),
}

var capaCancelCmd = &cobra.Command{
	Use:   "cancel <number>",
	Short: "Cancel a CAPA that is not yet closed",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := cmd.Context()

		record, err := deps.svc.CancelCAPA(ctx, cmd.Flags().Arg(0), stringFlag(cmd, "reason"))
		if err != nil {
			logging.Error(ctx, "cancel capa failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "cancel capa")
		}
		return writeTransition(cmd, "cancelled", record)
	}),
}

var capaUpdateCmd = &cobra.Command{
	Use:   "update <number>",
	Short: "Edit descriptive fields of a non-terminal CAPA",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := cmd.Context()

		patch, err := patchFromFlags(cmd)
		if err != nil {
			return err
		}

		record, err := deps.svc.UpdateCAPA(ctx, capa.UpdateCAPAInput{
			Number: cmd.Flags().Arg(0),
			Patch:  patch,
		})
		if err != nil {
			logging.Error(ctx, "update capa failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "update capa")
		}
		return writeTransition(cmd, "updated", record)
	}),
}

var capaDeleteCmd = &cobra.Command{
	Use:   "delete <number>",
	Short: "Delete a CAPA and everything it owns",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := cmd.Context()
		number := cmd.Flags().Arg(0)

		if err := deps.svc.DeleteCAPA(ctx, number); err != nil {
			logging.Error(ctx, "delete capa failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "delete capa")
		}
		canonical, _ := domaincapa.ParseNumber(number)
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted capa: %s\n", canonical); err != nil {
			return errs.Wrap(err, "write delete output")
		}
		return nil
	}),
}

func patchFromFlags(cmd *cobra.Command) (domaincapa.Patch, error) {
	var patch domaincapa.Patch
	flags := cmd.Flags()

	text := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		value, _ := flags.GetString(name)
		return &value
	}

	patch.Title = text("title")
	patch.Description = text("description")
	patch.ProblemStatement = text("problem")
	patch.RootCause = text("root-cause")
	patch.ProposedActions = text("proposed-actions")
	patch.SourceReference = text("source-ref")
	patch.Assignee = text("assignee")
	patch.Owner = text("owner")
	patch.VerificationMethod = text("verification-method")

	if value := text("priority"); value != nil {
		priority := domaincapa.Priority(*value)
		patch.Priority = &priority
	}
	if value := text("category"); value != nil {
		category := domaincapa.Category(*value)
		patch.Category = &category
	}
	if value := text("source-type"); value != nil {
		sourceType := domaincapa.SourceType(*value)
		patch.SourceType = &sourceType
	}
	if flags.Changed("verification-required") {
		required, _ := flags.GetBool("verification-required")
		patch.VerificationRequired = &required
	}
	if flags.Changed("ncr") {
		patch.RelatedNCRs, _ = flags.GetStringSlice("ncr")
		if patch.RelatedNCRs == nil {
			patch.RelatedNCRs = []string{}
		}
	}

	targetDate, err := optionalDateFlag(cmd, "target-date")
	if err != nil {
		return domaincapa.Patch{}, err
	}
	patch.TargetDate = targetDate
	patch.ClearTargetDate, _ = flags.GetBool("clear-target-date")
	if patch.ClearTargetDate && patch.TargetDate != nil {
		return domaincapa.Patch{}, fmt.Errorf("--target-date and --clear-target-date are mutually exclusive")
	}
	return patch, nil
}

func writeTransition(cmd *cobra.Command, verb string, record domaincapa.CAPA) error {
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), map[string]string{"number": record.Number, "status": string(record.Status)})
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s capa: %s status=%s\n", verb, record.Number, record.Status); err != nil {
		return errs.Wrap(err, "write output")
	}
	return nil
}

func stringFlag(cmd *cobra.Command, name string) string {
	value, _ := cmd.Flags().GetString(name)
	return value
}

func optionalDateFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	raw := strings.TrimSpace(stringFlag(cmd, name))
	if raw == "" {
		return nil, nil
	}
	t, err := domaincapa.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: want YYYY-MM-DD", name, raw)
	}
	return &t, nil
}

func requiredDateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	t, err := optionalDateFlag(cmd, name)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Time{}, fmt.Errorf("--%s is required", name)
	}
	return *t, nil
}

func addDescriptiveFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "Short title")
	cmd.Flags().String("priority", "", "Priority (low|medium|high|critical)")
	cmd.Flags().String("category", "", "Category (process|equipment|training|documentation|supplier|design|system)")
	cmd.Flags().String("source-type", "", "Origin (ncr|audit|customer_complaint|internal_observation|management_review)")
	cmd.Flags().String("source-ref", "", "Reference in the originating system")
	cmd.Flags().String("problem", "", "Problem statement")
	cmd.Flags().String("description", "", "Free text description")
	cmd.Flags().String("root-cause", "", "Root cause analysis")
	cmd.Flags().String("proposed-actions", "", "Proposed actions")
	cmd.Flags().String("target-date", "", "Target completion date (YYYY-MM-DD)")
	cmd.Flags().String("assignee", "", "Responsible person")
	cmd.Flags().String("owner", "", "Accountable owner")
	cmd.Flags().String("verification-method", "", "How effectiveness will be verified")
	cmd.Flags().StringSlice("ncr", nil, "Related NCR reference (repeatable)")
}

func init() {
	rootCmd.AddCommand(capaCmd)
	capaCmd.AddCommand(capaCreateCmd, capaListCmd, capaShowCmd, capaStatusCmd, capaOpenCmd, capaCancelCmd, capaUpdateCmd, capaDeleteCmd)

	addDescriptiveFlags(capaCreateCmd)
	capaCreateCmd.Flags().String("type", "", "CAPA type (corrective|preventive)")
	_ = capaCreateCmd.MarkFlagRequired("title")
	_ = capaCreateCmd.MarkFlagRequired("type")
	_ = capaCreateCmd.MarkFlagRequired("priority")
	_ = capaCreateCmd.MarkFlagRequired("category")

	capaListCmd.Flags().StringSlice("status", nil, "Status filter (repeatable)")
	capaListCmd.Flags().String("type", "", "Type filter")
	capaListCmd.Flags().String("priority", "", "Priority filter")
	capaListCmd.Flags().String("category", "", "Category filter")
	capaListCmd.Flags().String("assignee", "", "Assignee filter")
	capaListCmd.Flags().String("search", "", "Substring match on number, title or description")
	capaListCmd.Flags().Bool("active", false, "Only non-terminal CAPAs")
	capaListCmd.Flags().Bool("overdue", false, "Only overdue CAPAs")

	capaCancelCmd.Flags().String("reason", "", "Why the CAPA is cancelled")

	addDescriptiveFlags(capaUpdateCmd)
	capaUpdateCmd.Flags().Bool("verification-required", true, "Whether closure needs an effective verification")
	capaUpdateCmd.Flags().Bool("clear-target-date", false, "Remove the target date")
}
