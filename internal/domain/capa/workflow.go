package capa

import (
	"strings"
	"time"
)

type NewCAPA struct {
	Title              string     `json:"title" validate:"required"`
	Type               Type       `json:"type" validate:"required,oneof=corrective preventive"`
	Priority           Priority   `json:"priority" validate:"required,oneof=low medium high critical"`
	Category           Category   `json:"category" validate:"required,oneof=process equipment training documentation supplier design system"`
	SourceType         SourceType `json:"source_type" validate:"omitempty,oneof=ncr audit customer_complaint internal_observation management_review"`
	SourceReference    string     `json:"source_reference"`
	ProblemStatement   string     `json:"problem_statement"`
	Description        string     `json:"description"`
	RootCause          string     `json:"root_cause"`
	ProposedActions    string     `json:"proposed_actions"`
	TargetDate         *time.Time `json:"target_date"`
	Assignee           string     `json:"assignee"`
	Owner              string     `json:"owner"`
	VerificationMethod string     `json:"verification_method"`
	RelatedNCRs        []string   `json:"related_ncrs"`
}

func (n *NewCAPA) normalize() {
	n.Title = strings.TrimSpace(n.Title)
	n.Type = Type(normalizeToken(string(n.Type)))
	n.Priority = Priority(normalizeToken(string(n.Priority)))
	n.Category = Category(normalizeToken(string(n.Category)))
	n.SourceType = SourceType(normalizeToken(string(n.SourceType)))
	n.SourceReference = strings.TrimSpace(n.SourceReference)
	n.Assignee = strings.TrimSpace(n.Assignee)
	n.Owner = strings.TrimSpace(n.Owner)
}

// Validate checks the creation input without assigning a number.
func (n NewCAPA) Validate() error {
	n.normalize()
	return validateStruct(n)
}

// New builds a draft CAPA. The number is assigned by the caller from the store counter.
func New(in NewCAPA, number string, now time.Time) (CAPA, error) {
	in.normalize()
	if err := validateStruct(in); err != nil {
		return CAPA{}, err
	}
	if strings.TrimSpace(number) == "" {
		return CAPA{}, missing("number")
	}

	return CAPA{
		Number:               number,
		Type:                 in.Type,
		Category:             in.Category,
		Priority:             in.Priority,
		SourceType:           in.SourceType,
		SourceReference:      in.SourceReference,
		Title:                in.Title,
		Description:          in.Description,
		ProblemStatement:     in.ProblemStatement,
		RootCause:            in.RootCause,
		ProposedActions:      in.ProposedActions,
		CreatedDate:          now,
		TargetDate:           dateOnlyPtr(in.TargetDate),
		Assignee:             in.Assignee,
		Owner:                in.Owner,
		VerificationRequired: true,
		VerificationMethod:   in.VerificationMethod,
		ActionItems:          []ActionItem{},
		VerificationRecords:  []VerificationRecord{},
		RelatedNCRs:          NormalizeNCRs(in.RelatedNCRs),
		Status:               StatusDraft,
	}, nil
}

type NewActionItem struct {
	Description string
	Assignee    string
	DueDate     time.Time
	Notes       string
}

// AddActionItem appends a pending item with the next id scoped to this CAPA.
func (c *CAPA) AddActionItem(in NewActionItem) (ActionItem, error) {
	if c.Status.IsTerminal() {
		return ActionItem{}, terminalState(*c, "add action item to")
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return ActionItem{}, missing("description")
	}
	assignee := strings.TrimSpace(in.Assignee)
	if assignee == "" {
		return ActionItem{}, missing("assignee")
	}
	if in.DueDate.IsZero() {
		return ActionItem{}, missing("due_date")
	}

	item := ActionItem{
		ID:          c.nextActionItemID(),
		Description: description,
		Assignee:    assignee,
		DueDate:     dateOnly(in.DueDate),
		Status:      ActionPending,
		Notes:       strings.TrimSpace(in.Notes),
	}
	c.ActionItems = append(c.ActionItems, item)
	return item, nil
}

// SetActionItemStatus keeps completedDate in step with the completed status.
func (c *CAPA) SetActionItemStatus(itemID uint64, status ActionStatus, now time.Time) (ActionItem, error) {
	if !status.Valid() {
		return ActionItem{}, &InvalidStateError{
			Number:    c.Number,
			Status:    c.Status,
			Operation: "set action item status on",
			Reason:    "unknown action item status " + string(status),
		}
	}
	if c.Status.IsTerminal() {
		return ActionItem{}, terminalState(*c, "update action item on")
	}
	item, ok := c.FindActionItem(itemID)
	if !ok {
		return ActionItem{}, ActionItemNotFound(c.Number, itemID)
	}

	item.Status = status
	if status == ActionCompleted {
		completed := now
		item.CompletedDate = &completed
	} else {
		item.CompletedDate = nil
	}
	return *item, nil
}

type NewVerification struct {
	Verifier string             `json:"verifier"`
	Result   VerificationResult `json:"result" validate:"required,oneof=effective partial not_effective"`
	Notes    string             `json:"notes"`
	Rating   *int               `json:"effectiveness_rating" validate:"omitempty,min=0,max=100"`
}

// RecordVerification appends an immutable record and recomputes the closure fields.
func (c *CAPA) RecordVerification(in NewVerification, now time.Time) (VerificationRecord, error) {
	in.Result = VerificationResult(normalizeToken(string(in.Result)))
	if err := validateStruct(in); err != nil {
		return VerificationRecord{}, err
	}
	if in.Result == ResultEffective && in.Rating == nil {
		return VerificationRecord{}, missing("effectiveness_rating")
	}
	if c.Status.IsTerminal() {
		return VerificationRecord{}, terminalState(*c, "record verification for")
	}

	rec := VerificationRecord{
		ID:       c.nextVerificationID(),
		Date:     now,
		Verifier: strings.TrimSpace(in.Verifier),
		Result:   in.Result,
		Notes:    strings.TrimSpace(in.Notes),
	}
	c.VerificationRecords = append(c.VerificationRecords, rec)

	if in.Result == ResultEffective {
		closedAt := now
		rating := *in.Rating
		c.ActualClosureDate = &closedAt
		c.EffectivenessRating = &rating
	} else {
		c.ActualClosureDate = nil
		c.EffectivenessRating = nil
	}
	return rec, nil
}

// Open submits a draft for execution.
func (c *CAPA) Open() error {
	if c.Status != StatusDraft {
		return &InvalidStateError{Number: c.Number, Status: c.Status, Operation: "open", Reason: "only drafts can be opened"}
	}
	c.Status = StatusOpen
	return nil
}

// Cancel is an administrative transition allowed from every non-terminal status.
func (c *CAPA) Cancel() error {
	if c.Status.IsTerminal() {
		return terminalState(*c, "cancel")
	}
	c.Status = StatusCancelled
	return nil
}

// Patch carries optional edits; nil fields are left untouched.
type Patch struct {
	Title                *string
	Description          *string
	ProblemStatement     *string
	RootCause            *string
	ProposedActions      *string
	Priority             *Priority
	Category             *Category
	SourceType           *SourceType
	SourceReference      *string
	TargetDate           *time.Time
	ClearTargetDate      bool
	Assignee             *string
	Owner                *string
	VerificationRequired *bool
	VerificationMethod   *string
	RelatedNCRs          []string
}

func (c *CAPA) ApplyPatch(p Patch) error {
	if c.Status.IsTerminal() {
		return terminalState(*c, "update")
	}

	next := c.Clone()
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return missing("title")
		}
		next.Title = title
	}
	if p.Priority != nil {
		priority := Priority(normalizeToken(string(*p.Priority)))
		if !priority.Valid() {
			return invalidValue("priority", *p.Priority)
		}
		next.Priority = priority
	}
	if p.Category != nil {
		category := Category(normalizeToken(string(*p.Category)))
		if !category.Valid() {
			return invalidValue("category", *p.Category)
		}
		next.Category = category
	}
	if p.SourceType != nil {
		source := SourceType(normalizeToken(string(*p.SourceType)))
		if source != "" && !source.Valid() {
			return invalidValue("source_type", *p.SourceType)
		}
		next.SourceType = source
	}
	assignString(&next.Description, p.Description)
	assignString(&next.ProblemStatement, p.ProblemStatement)
	assignString(&next.RootCause, p.RootCause)
	assignString(&next.ProposedActions, p.ProposedActions)
	assignString(&next.SourceReference, p.SourceReference)
	assignString(&next.Assignee, p.Assignee)
	assignString(&next.Owner, p.Owner)
	assignString(&next.VerificationMethod, p.VerificationMethod)
	if p.ClearTargetDate {
		next.TargetDate = nil
	} else if p.TargetDate != nil {
		next.TargetDate = dateOnlyPtr(p.TargetDate)
	}
	if p.VerificationRequired != nil {
		next.VerificationRequired = *p.VerificationRequired
	}
	if p.RelatedNCRs != nil {
		next.RelatedNCRs = NormalizeNCRs(p.RelatedNCRs)
	}

	*c = next
	return nil
}

func assignString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}
