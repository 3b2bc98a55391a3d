package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	domaincapa "capaflow/internal/domain/capa"
	"capaflow/internal/usecase/capa"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Bold(true).Width(14)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
)

type actionItemView struct {
	ID            uint64 `json:"id"`
	Description   string `json:"description"`
	Assignee      string `json:"assignee"`
	DueDate       string `json:"due_date"`
	Status        string `json:"status"`
	CompletedDate string `json:"completed_date,omitempty"`
	Notes         string `json:"notes,omitempty"`
	Overdue       bool   `json:"overdue"`
}

type verificationView struct {
	ID       uint64 `json:"id"`
	Date     string `json:"date"`
	Verifier string `json:"verifier"`
	Result   string `json:"result"`
	Notes    string `json:"notes,omitempty"`
}

type capaView struct {
	Number               string             `json:"number"`
	Title                string             `json:"title"`
	Type                 string             `json:"type"`
	Category             string             `json:"category"`
	Priority             string             `json:"priority"`
	Status               string             `json:"status"`
	SourceType           string             `json:"source_type,omitempty"`
	SourceReference      string             `json:"source_reference,omitempty"`
	ProblemStatement     string             `json:"problem_statement,omitempty"`
	Description          string             `json:"description,omitempty"`
	RootCause            string             `json:"root_cause,omitempty"`
	ProposedActions      string             `json:"proposed_actions,omitempty"`
	Assignee             string             `json:"assignee,omitempty"`
	Owner                string             `json:"owner,omitempty"`
	CreatedDate          string             `json:"created_date"`
	TargetDate           string             `json:"target_date,omitempty"`
	ActualClosureDate    string             `json:"actual_closure_date,omitempty"`
	VerificationRequired bool               `json:"verification_required"`
	VerificationMethod   string             `json:"verification_method,omitempty"`
	EffectivenessRating  *int               `json:"effectiveness_rating,omitempty"`
	RelatedNCRs          []string           `json:"related_ncrs,omitempty"`
	Progress             int                `json:"progress"`
	Overdue              bool               `json:"overdue"`
	ActionItems          []actionItemView   `json:"action_items"`
	VerificationRecords  []verificationView `json:"verification_records"`
}

func toView(d capa.CAPADetail) capaView {
	overdueItems := make(map[uint64]bool, len(d.OverdueItems))
	for _, id := range d.OverdueItems {
		overdueItems[id] = true
	}

	view := capaView{
		Number:               d.Number,
		Title:                d.Title,
		Type:                 string(d.Type),
		Category:             string(d.Category),
		Priority:             string(d.Priority),
		Status:               string(d.Status),
		SourceType:           string(d.SourceType),
		SourceReference:      d.SourceReference,
		ProblemStatement:     d.ProblemStatement,
		Description:          d.Description,
		RootCause:            d.RootCause,
		ProposedActions:      d.ProposedActions,
		Assignee:             d.Assignee,
		Owner:                d.Owner,
		CreatedDate:          d.CreatedDate.Format(time.RFC3339),
		TargetDate:           formatDatePtr(d.TargetDate),
		ActualClosureDate:    formatTimePtr(d.ActualClosureDate),
		VerificationRequired: d.VerificationRequired,
		VerificationMethod:   d.VerificationMethod,
		EffectivenessRating:  d.EffectivenessRating,
		RelatedNCRs:          d.RelatedNCRs,
		Progress:             d.Progress,
		Overdue:              d.Overdue,
		ActionItems:          make([]actionItemView, 0, len(d.ActionItems)),
		VerificationRecords:  make([]verificationView, 0, len(d.VerificationRecords)),
	}
	for _, item := range d.ActionItems {
		view.ActionItems = append(view.ActionItems, actionItemView{
			ID:            item.ID,
			Description:   item.Description,
			Assignee:      item.Assignee,
			DueDate:       item.DueDate.Format(domaincapa.DateLayout),
			Status:        string(item.Status),
			CompletedDate: formatTimePtr(item.CompletedDate),
			Notes:         item.Notes,
			Overdue:       overdueItems[item.ID],
		})
	}
	for _, rec := range d.VerificationRecords {
		view.VerificationRecords = append(view.VerificationRecords, verificationView{
			ID:       rec.ID,
			Date:     rec.Date.Format(time.RFC3339),
			Verifier: rec.Verifier,
			Result:   string(rec.Result),
			Notes:    rec.Notes,
		})
	}
	return view
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func renderCAPAList(w io.Writer, items []capa.CAPADetail) error {
	if jsonOutput {
		views := make([]capaView, 0, len(items))
		for _, item := range items {
			views = append(views, toView(item))
		}
		return writeJSON(w, views)
	}
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "no capas")
		return err
	}

	t := newTable("NUMBER", "STATUS", "TYPE", "PRIORITY", "PROGRESS", "TARGET", "ASSIGNEE", "TITLE")
	for _, item := range items {
		target := formatDatePtr(item.TargetDate)
		if item.Overdue {
			target += " (overdue)"
		}
		t.Row(
			item.Number,
			string(item.Status),
			string(item.Type),
			string(item.Priority),
			strconv.Itoa(item.Progress)+"%",
			firstNonEmpty(target, "-"),
			firstNonEmpty(item.Assignee, "-"),
			item.Title,
		)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func renderCAPADetail(w io.Writer, d capa.CAPADetail) error {
	if jsonOutput {
		return writeJSON(w, toView(d))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(d.Number+"  "+d.Title) + "\n")
	field := func(label string, value string) {
		b.WriteString(labelStyle.Render(label) + firstNonEmpty(value, "-") + "\n")
	}
	field("Status", string(d.Status))
	field("Type", string(d.Type)+" / "+string(d.Category))
	field("Priority", string(d.Priority))
	field("Source", strings.TrimSpace(string(d.SourceType)+" "+d.SourceReference))
	field("Assignee", d.Assignee)
	field("Owner", d.Owner)
	field("Created", d.CreatedDate.Format(domaincapa.DateLayout))
	target := formatDatePtr(d.TargetDate)
	if d.Overdue {
		target += " (overdue)"
	}
	field("Target", target)
	field("Progress", strconv.Itoa(d.Progress)+"%")
	field("Verification", fmt.Sprintf("required=%t %s", d.VerificationRequired, d.VerificationMethod))
	if d.EffectivenessRating != nil {
		field("Effectiveness", strconv.Itoa(*d.EffectivenessRating))
	}
	field("Closed", formatTimePtr(d.ActualClosureDate))
	field("Related NCRs", strings.Join(d.RelatedNCRs, ", "))
	if d.ProblemStatement != "" {
		field("Problem", d.ProblemStatement)
	}
	if d.RootCause != "" {
		field("Root cause", d.RootCause)
	}

	if len(d.ActionItems) > 0 {
		t := newTable("ID", "STATUS", "DUE", "ASSIGNEE", "DESCRIPTION")
		for _, item := range d.ActionItems {
			t.Row(strconv.FormatUint(item.ID, 10), string(item.Status), item.DueDate.Format(domaincapa.DateLayout), item.Assignee, item.Description)
		}
		b.WriteString("\n" + titleStyle.Render("Action items") + "\n" + t.String() + "\n")
	}
	if len(d.VerificationRecords) > 0 {
		t := newTable("ID", "DATE", "RESULT", "VERIFIER", "NOTES")
		for _, rec := range d.VerificationRecords {
			t.Row(strconv.FormatUint(rec.ID, 10), rec.Date.Format(domaincapa.DateLayout), string(rec.Result), rec.Verifier, rec.Notes)
		}
		b.WriteString("\n" + titleStyle.Render("Verification records") + "\n" + t.String() + "\n")
	}

	_, err := fmt.Fprint(w, b.String())
	return err
}

func renderStatistics(w io.Writer, stats domaincapa.Statistics) error {
	if jsonOutput {
		byType := make(map[string]int, len(stats.ByType))
		for k, v := range stats.ByType {
			byType[string(k)] = v
		}
		return writeJSON(w, map[string]any{
			"total":        stats.Total,
			"by_type":      byType,
			"open":         stats.Open,
			"verification": stats.Verification,
			"closed":       stats.Closed,
			"cancelled":    stats.Cancelled,
			"overdue":      stats.Overdue,
		})
	}

	t := newTable("METRIC", "COUNT")
	t.Row("total", strconv.Itoa(stats.Total))
	types := make([]string, 0, len(stats.ByType))
	for k := range stats.ByType {
		types = append(types, string(k))
	}
	sort.Strings(types)
	for _, k := range types {
		t.Row("type:"+k, strconv.Itoa(stats.ByType[domaincapa.Type(k)]))
	}
	t.Row("open", strconv.Itoa(stats.Open))
	t.Row("verification", strconv.Itoa(stats.Verification))
	t.Row("closed", strconv.Itoa(stats.Closed))
	t.Row("cancelled", strconv.Itoa(stats.Cancelled))
	t.Row("overdue", strconv.Itoa(stats.Overdue))
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func firstNonEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(domaincapa.DateLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
