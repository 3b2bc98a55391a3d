package capaconsole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"capaflow/internal/bootstrap/logging"
	domaincapa "capaflow/internal/domain/capa"
	"capaflow/internal/ports"
	"capaflow/internal/usecase/capa"
)

const (
	maxShownVerifications = 3
	maxAuditLines         = 8
)

// Board is the subset of the CAPA service the console drives.
type Board interface {
	ListCAPAs(ctx context.Context, input capa.ListCAPAsInput) ([]capa.CAPADetail, error)
	GetCAPA(ctx context.Context, number string) (capa.CAPADetail, error)
	OpenCAPA(ctx context.Context, number string) (domaincapa.CAPA, error)
	CancelCAPA(ctx context.Context, number string, reason string) (domaincapa.CAPA, error)
	UpdateActionItemStatus(ctx context.Context, input capa.UpdateActionItemStatusInput) (domaincapa.CAPA, error)
}

type BoardOptions struct {
	Assignee        string
	StatusFilter    string
	OverdueOnly     bool
	RefreshInterval time.Duration
}

type boardModel struct {
	ctx             context.Context
	board           Board
	assigneeFilter  string
	statusFilter    domaincapa.Status
	overdueOnly     bool
	refreshInterval time.Duration

	items         []capa.CAPADetail
	selectedIndex int
	detail        capa.CAPADetail
	hasDetail     bool
	status        string
	auditLogs     []string
}

type listLoadedMsg struct {
	items []capa.CAPADetail
	err   error
}

type detailLoadedMsg struct {
	number string
	detail capa.CAPADetail
	err    error
}

type tickMsg struct{}

type actionDoneMsg struct {
	action string
	number string
	result string
	err    error
}

func NewBoardModel(ctx context.Context, board Board, options BoardOptions) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	status, _ := domaincapa.ParseStatus(options.StatusFilter)

	return &boardModel{
		ctx:             ctx,
		board:           board,
		assigneeFilter:  strings.TrimSpace(options.Assignee),
		statusFilter:    status,
		overdueOnly:     options.OverdueOnly,
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *boardModel) Init() tea.Cmd {
	return tea.Batch(m.loadListCmd(), m.tickCmd())
}

func (m *boardModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadListCmd(), m.tickCmd())
	case listLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.items = msg.items
		if len(m.items) == 0 {
			m.selectedIndex = 0
			m.hasDetail = false
			m.status = "no capas match"
			return m, nil
		}
		if m.selectedIndex >= len(m.items) {
			m.selectedIndex = len(m.items) - 1
		}
		m.status = fmt.Sprintf("refreshed, %d capas", len(m.items))
		return m, m.loadSelectedDetailCmd()
	case detailLoadedMsg:
		selected, ok := m.selected()
		if !ok || selected.Number != msg.number {
			return m, nil
		}
		if msg.err != nil {
			m.hasDetail = false
			m.status = "detail failed: " + msg.err.Error()
			return m, nil
		}
		m.detail = msg.detail
		m.hasDetail = true
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			m.appendAuditLog(msg.action, msg.number, "failed", msg.err)
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.result)
			m.appendAuditLog(msg.action, msg.number, msg.result, nil)
		}
		return m, m.loadListCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadListCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadSelectedDetailCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.items)-1 {
				m.selectedIndex++
				return m, m.loadSelectedDetailCmd()
			}
			return m, nil
		case "o":
			return m, m.openCmd()
		case "c":
			return m, m.completeNextCmd()
		case "x":
			return m, m.cancelCmd()
		}
	}
	return m, nil
}

func (m *boardModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))
	overdueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("CAPA Board"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"status=%s assignee=%s overdue_only=%t refresh=%s",
		firstNonEmpty(string(m.statusFilter), "all"),
		firstNonEmpty(m.assigneeFilter, "-"),
		m.overdueOnly,
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Queue"))
	builder.WriteString("\n")
	if len(m.items) == 0 {
		builder.WriteString(dimStyle.Render("- no capas"))
		builder.WriteString("\n\n")
	} else {
		for index, item := range m.items {
			line := fmt.Sprintf(
				"%s [%s] %s %3d%% assignee=%s %s",
				item.Number,
				item.Status,
				item.Priority,
				item.Progress,
				firstNonEmpty(item.Assignee, "-"),
				item.Title,
			)
			switch {
			case index == m.selectedIndex:
				builder.WriteString(selectedStyle.Render("> " + line))
			case item.Overdue:
				builder.WriteString(overdueStyle.Render("  " + line))
			default:
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Detail"))
	builder.WriteString("\n")
	if !m.hasDetail {
		builder.WriteString(dimStyle.Render("- no detail"))
		builder.WriteString("\n\n")
	} else {
		d := m.detail
		builder.WriteString(fmt.Sprintf("Number: %s (%s/%s)\n", d.Number, d.Type, d.Category))
		builder.WriteString(fmt.Sprintf("Status: %s  Progress: %d%%  Overdue: %t\n", d.Status, d.Progress, d.Overdue))
		builder.WriteString(fmt.Sprintf("Source: %s %s\n", firstNonEmpty(string(d.SourceType), "-"), d.SourceReference))
		builder.WriteString(fmt.Sprintf("Target: %s\n", formatDate(d.TargetDate)))
		builder.WriteString("\nAction Items:\n")
		if len(d.ActionItems) == 0 {
			builder.WriteString("- none\n")
		}
		for _, item := range d.ActionItems {
			builder.WriteString(fmt.Sprintf("- #%d [%s] due %s %s (%s)\n",
				item.ID, item.Status, item.DueDate.Format(domaincapa.DateLayout), item.Description, item.Assignee))
		}
		builder.WriteString("\nVerifications:\n")
		records := d.VerificationRecords
		if len(records) == 0 {
			builder.WriteString("- none\n")
		} else {
			start := len(records) - maxShownVerifications
			if start < 0 {
				start = 0
			}
			for _, rec := range records[start:] {
				builder.WriteString(fmt.Sprintf("- v%d %s %s by %s\n", rec.ID, rec.Date.Format(domaincapa.DateLayout), rec.Result, rec.Verifier))
			}
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Audit Log"))
	builder.WriteString("\n")
	if len(m.auditLogs) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n\n")
	} else {
		for _, line := range m.auditLogs {
			builder.WriteString("- " + line)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: up/k down/j move  g refresh  o open  c complete next item  x cancel  q quit"))
	return builder.String()
}

func (m *boardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *boardModel) loadListCmd() tea.Cmd {
	return func() tea.Msg {
		input := capa.ListCAPAsInput{
			Filter:      ports.CAPAFilter{Assignee: m.assigneeFilter},
			OverdueOnly: m.overdueOnly,
		}
		if m.statusFilter != "" {
			input.Filter.Statuses = []domaincapa.Status{m.statusFilter}
		}
		items, err := m.board.ListCAPAs(m.ctx, input)
		return listLoadedMsg{items: items, err: err}
	}
}

func (m *boardModel) loadSelectedDetailCmd() tea.Cmd {
	selected, ok := m.selected()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		detail, err := m.board.GetCAPA(m.ctx, selected.Number)
		return detailLoadedMsg{number: selected.Number, detail: detail, err: err}
	}
}

func (m *boardModel) openCmd() tea.Cmd {
	selected, ok := m.selected()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		record, err := m.board.OpenCAPA(m.ctx, selected.Number)
		return actionDoneMsg{action: "open", number: selected.Number, result: string(record.Status), err: err}
	}
}

func (m *boardModel) cancelCmd() tea.Cmd {
	selected, ok := m.selected()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		record, err := m.board.CancelCAPA(m.ctx, selected.Number, "cancelled from console")
		return actionDoneMsg{action: "cancel", number: selected.Number, result: string(record.Status), err: err}
	}
}

// completeNextCmd completes the first unfinished action item of the selection.
func (m *boardModel) completeNextCmd() tea.Cmd {
	if !m.hasDetail {
		return nil
	}
	detail := m.detail
	var next *domaincapa.ActionItem
	for i := range detail.ActionItems {
		if detail.ActionItems[i].Status != domaincapa.ActionCompleted {
			next = &detail.ActionItems[i]
			break
		}
	}
	if next == nil {
		m.status = "no open action items on " + detail.Number
		return nil
	}
	itemID := next.ID
	return func() tea.Msg {
		record, err := m.board.UpdateActionItemStatus(m.ctx, capa.UpdateActionItemStatusInput{
			Number: detail.Number,
			ItemID: itemID,
			Status: string(domaincapa.ActionCompleted),
		})
		return actionDoneMsg{
			action: "complete item",
			number: detail.Number,
			result: fmt.Sprintf("#%d -> %s", itemID, record.Status),
			err:    err,
		}
	}
}

func (m *boardModel) selected() (capa.CAPADetail, bool) {
	if len(m.items) == 0 || m.selectedIndex < 0 || m.selectedIndex >= len(m.items) {
		return capa.CAPADetail{}, false
	}
	return m.items[m.selectedIndex], true
}

func (m *boardModel) appendAuditLog(action string, number string, result string, err error) {
	line := fmt.Sprintf("%s %s %s %s", time.Now().UTC().Format("15:04:05"), action, number, result)
	attrs := []slog.Attr{
		slog.String("action", action),
		slog.String("capa_number", number),
		slog.String("result", result),
	}
	if err != nil {
		line += ": " + err.Error()
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logging.Debug(m.ctx, "console action", attrs...)

	m.auditLogs = append(m.auditLogs, line)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[len(m.auditLogs)-maxAuditLines:]
	}
}

func firstNonEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(domaincapa.DateLayout)
}
