package repository

import (
	"time"

	"capaflow/internal/domain/capa"
	"capaflow/internal/errs"
	"capaflow/internal/infrastructure/persistence/sqlite/model"
)

const timestampLayout = time.RFC3339Nano

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatTimestampPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTimestamp(*t)
	return &s
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(capa.DateLayout)
	return &s
}

func parseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, raw)
	if err != nil {
		return time.Time{}, errs.Wrapf(err, "parse timestamp %q", raw)
	}
	return t, nil
}

func parseTimestampPtr(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := parseTimestamp(*raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDatePtr(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := time.Parse(capa.DateLayout, *raw)
	if err != nil {
		return nil, errs.Wrapf(err, "parse date %q", *raw)
	}
	return &t, nil
}

func toCAPARow(c capa.CAPA) model.CAPA {
	var rating *int
	if c.EffectivenessRating != nil {
		v := *c.EffectivenessRating
		rating = &v
	}
	return model.CAPA{
		Number:               c.Number,
		Type:                 string(c.Type),
		Category:             string(c.Category),
		Priority:             string(c.Priority),
		SourceType:           string(c.SourceType),
		SourceReference:      c.SourceReference,
		Title:                c.Title,
		Description:          c.Description,
		ProblemStatement:     c.ProblemStatement,
		RootCause:            c.RootCause,
		ProposedActions:      c.ProposedActions,
		CreatedAt:            formatTimestamp(c.CreatedDate),
		TargetDate:           formatDatePtr(c.TargetDate),
		ActualClosureDate:    formatTimestampPtr(c.ActualClosureDate),
		Assignee:             c.Assignee,
		Owner:                c.Owner,
		VerificationRequired: c.VerificationRequired,
		VerificationMethod:   c.VerificationMethod,
		EffectivenessRating:  rating,
		Status:               string(c.Status),
	}
}

func fromCAPARow(row model.CAPA) (capa.CAPA, error) {
	created, err := parseTimestamp(row.CreatedAt)
	if err != nil {
		return capa.CAPA{}, err
	}
	target, err := parseDatePtr(row.TargetDate)
	if err != nil {
		return capa.CAPA{}, err
	}
	closed, err := parseTimestampPtr(row.ActualClosureDate)
	if err != nil {
		return capa.CAPA{}, err
	}

	return capa.CAPA{
		Number:               row.Number,
		Type:                 capa.Type(row.Type),
		Category:             capa.Category(row.Category),
		Priority:             capa.Priority(row.Priority),
		SourceType:           capa.SourceType(row.SourceType),
		SourceReference:      row.SourceReference,
		Title:                row.Title,
		Description:          row.Description,
		ProblemStatement:     row.ProblemStatement,
		RootCause:            row.RootCause,
		ProposedActions:      row.ProposedActions,
		CreatedDate:          created,
		TargetDate:           target,
		ActualClosureDate:    closed,
		Assignee:             row.Assignee,
		Owner:                row.Owner,
		VerificationRequired: row.VerificationRequired,
		VerificationMethod:   row.VerificationMethod,
		EffectivenessRating:  row.EffectivenessRating,
		ActionItems:          []capa.ActionItem{},
		VerificationRecords:  []capa.VerificationRecord{},
		Status:               capa.Status(row.Status),
	}, nil
}

func toActionItemRow(capaID uint64, item capa.ActionItem) model.ActionItem {
	return model.ActionItem{
		CAPAID:        capaID,
		ItemID:        item.ID,
		Description:   item.Description,
		Assignee:      item.Assignee,
		DueDate:       item.DueDate.Format(capa.DateLayout),
		Status:        string(item.Status),
		CompletedDate: formatTimestampPtr(item.CompletedDate),
		Notes:         item.Notes,
	}
}

func fromActionItemRow(row model.ActionItem) (capa.ActionItem, error) {
	due, err := time.Parse(capa.DateLayout, row.DueDate)
	if err != nil {
		return capa.ActionItem{}, errs.Wrapf(err, "parse due date %q", row.DueDate)
	}
	completed, err := parseTimestampPtr(row.CompletedDate)
	if err != nil {
		return capa.ActionItem{}, err
	}
	return capa.ActionItem{
		ID:            row.ItemID,
		Description:   row.Description,
		Assignee:      row.Assignee,
		DueDate:       due,
		Status:        capa.ActionStatus(row.Status),
		CompletedDate: completed,
		Notes:         row.Notes,
	}, nil
}

func toVerificationRow(capaID uint64, rec capa.VerificationRecord) model.Verification {
	return model.Verification{
		CAPAID:         capaID,
		VerificationID: rec.ID,
		RecordedAt:     formatTimestamp(rec.Date),
		Verifier:       rec.Verifier,
		Result:         string(rec.Result),
		Notes:          rec.Notes,
	}
}

func fromVerificationRow(row model.Verification) (capa.VerificationRecord, error) {
	recorded, err := parseTimestamp(row.RecordedAt)
	if err != nil {
		return capa.VerificationRecord{}, err
	}
	return capa.VerificationRecord{
		ID:       row.VerificationID,
		Date:     recorded,
		Verifier: row.Verifier,
		Result:   capa.VerificationResult(row.Result),
		Notes:    row.Notes,
	}, nil
}
