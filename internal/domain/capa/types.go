package capa

import (
	"strings"
	"time"
)

type Type string

const (
	TypeCorrective Type = "corrective"
	TypePreventive Type = "preventive"
)

type Category string

const (
	CategoryProcess       Category = "process"
	CategoryEquipment     Category = "equipment"
	CategoryTraining      Category = "training"
	CategoryDocumentation Category = "documentation"
	CategorySupplier      Category = "supplier"
	CategoryDesign        Category = "design"
	CategorySystem        Category = "system"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

type SourceType string

const (
	SourceNCR                 SourceType = "ncr"
	SourceAudit               SourceType = "audit"
	SourceCustomerComplaint   SourceType = "customer_complaint"
	SourceInternalObservation SourceType = "internal_observation"
	SourceManagementReview    SourceType = "management_review"
)

type Status string

const (
	StatusDraft        Status = "draft"
	StatusOpen         Status = "open"
	StatusInProgress   Status = "in_progress"
	StatusVerification Status = "verification"
	StatusClosed       Status = "closed"
	StatusCancelled    Status = "cancelled"
)

type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in_progress"
	ActionCompleted  ActionStatus = "completed"
	ActionOverdue    ActionStatus = "overdue"
)

type VerificationResult string

const (
	ResultEffective    VerificationResult = "effective"
	ResultPartial      VerificationResult = "partial"
	ResultNotEffective VerificationResult = "not_effective"
)

var (
	allowedTypes      = []Type{TypeCorrective, TypePreventive}
	allowedCategories = []Category{
		CategoryProcess, CategoryEquipment, CategoryTraining, CategoryDocumentation,
		CategorySupplier, CategoryDesign, CategorySystem,
	}
	allowedPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
	allowedSources    = []SourceType{
		SourceNCR, SourceAudit, SourceCustomerComplaint, SourceInternalObservation, SourceManagementReview,
	}
	allowedStatuses = []Status{
		StatusDraft, StatusOpen, StatusInProgress, StatusVerification, StatusClosed, StatusCancelled,
	}
	allowedActionStatuses = []ActionStatus{ActionPending, ActionInProgress, ActionCompleted, ActionOverdue}
	allowedResults        = []VerificationResult{ResultEffective, ResultPartial, ResultNotEffective}
)

// IsTerminal reports whether no workflow operation may leave the status.
func (s Status) IsTerminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

func (s Status) Valid() bool { return contains(allowedStatuses, s) }
func (s ActionStatus) Valid() bool { return contains(allowedActionStatuses, s) }
func (r VerificationResult) Valid() bool { return contains(allowedResults, r) }
func (t Type) Valid() bool { return contains(allowedTypes, t) }
func (c Category) Valid() bool { return contains(allowedCategories, c) }
func (p Priority) Valid() bool { return contains(allowedPriorities, p) }
func (s SourceType) Valid() bool { return contains(allowedSources, s) }

// ParseStatus normalizes user input such as "In Progress" or "in-progress".
func ParseStatus(raw string) (Status, bool) {
	s := Status(normalizeToken(raw))
	return s, s.Valid()
}

func ParseActionStatus(raw string) (ActionStatus, bool) {
	s := ActionStatus(normalizeToken(raw))
	return s, s.Valid()
}

func ParseVerificationResult(raw string) (VerificationResult, bool) {
	r := VerificationResult(normalizeToken(raw))
	return r, r.Valid()
}

// CAPA is the aggregate root. Action items and verification records have no
// identity outside of it.
type CAPA struct {
	Number   string
	Type     Type
	Category Category
	Priority Priority

	SourceType      SourceType
	SourceReference string

	Title            string
	Description      string
	ProblemStatement string
	RootCause        string
	ProposedActions  string

	CreatedDate       time.Time
	TargetDate        *time.Time
	ActualClosureDate *time.Time

	Assignee string
	Owner    string

	VerificationRequired bool
	VerificationMethod   string
	EffectivenessRating  *int

	ActionItems         []ActionItem
	VerificationRecords []VerificationRecord
	RelatedNCRs         []string

	Status Status
}

type ActionItem struct {
	ID            uint64
	Description   string
	Assignee      string
	DueDate       time.Time
	Status        ActionStatus
	CompletedDate *time.Time
	Notes         string
}

type VerificationRecord struct {
	ID       uint64
	Date     time.Time
	Verifier string
	Result   VerificationResult
	Notes    string
}

// FindActionItem returns a pointer into the aggregate so callers can mutate it in place.
func (c *CAPA) FindActionItem(id uint64) (*ActionItem, bool) {
	for i := range c.ActionItems {
		if c.ActionItems[i].ID == id {
			return &c.ActionItems[i], true
		}
	}
	return nil, false
}

func (c *CAPA) nextActionItemID() uint64 {
	var maxID uint64
	for _, item := range c.ActionItems {
		if item.ID > maxID {
			maxID = item.ID
		}
	}
	return maxID + 1
}

func (c *CAPA) nextVerificationID() uint64 {
	var maxID uint64
	for _, rec := range c.VerificationRecords {
		if rec.ID > maxID {
			maxID = rec.ID
		}
	}
	return maxID + 1
}

// LatestVerification returns the most recently appended record.
func (c CAPA) LatestVerification() (VerificationRecord, bool) {
	if len(c.VerificationRecords) == 0 {
		return VerificationRecord{}, false
	}
	return c.VerificationRecords[len(c.VerificationRecords)-1], true
}

// Clone deep-copies the aggregate so stores never share slices with callers.
func (c CAPA) Clone() CAPA {
	out := c
	out.TargetDate = cloneTime(c.TargetDate)
	out.ActualClosureDate = cloneTime(c.ActualClosureDate)
	if c.EffectivenessRating != nil {
		rating := *c.EffectivenessRating
		out.EffectivenessRating = &rating
	}
	if c.ActionItems != nil {
		out.ActionItems = make([]ActionItem, len(c.ActionItems))
		for i, item := range c.ActionItems {
			item.CompletedDate = cloneTime(item.CompletedDate)
			out.ActionItems[i] = item
		}
	}
	if c.VerificationRecords != nil {
		out.VerificationRecords = append([]VerificationRecord(nil), c.VerificationRecords...)
	}
	if c.RelatedNCRs != nil {
		out.RelatedNCRs = append([]string(nil), c.RelatedNCRs...)
	}
	return out
}

// NormalizeNCRs trims, drops empties and de-duplicates while keeping order.
func NormalizeNCRs(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func contains[T comparable](set []T, v T) bool {
	for _, candidate := range set {
		if candidate == v {
			return true
		}
	}
	return false
}

func normalizeToken(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}
