package capa

import (
	"context"
	"log/slog"

	"capaflow/internal/bootstrap/logging"
	domaincapa "capaflow/internal/domain/capa"
)

const (
	opAddActionItem    = "add_action_item"
	opUpdateActionItem = "update_action_item_status"
)

// AddActionItem appends a pending item. A draft or open parent moves to in_progress.
func (s *Service) AddActionItem(ctx context.Context, input AddActionItemInput) (domaincapa.ActionItem, error) {
	var added domaincapa.ActionItem
	record, err := s.mutate(ctx, opAddActionItem, input.Number, func(record *domaincapa.CAPA) error {
		item, err := record.AddActionItem(domaincapa.NewActionItem{
			Description: input.Description,
			Assignee:    input.Assignee,
			DueDate:     input.DueDate,
			Notes:       input.Notes,
		})
		if err != nil {
			return err
		}
		added = item
		return nil
	})
	if err != nil {
		return domaincapa.ActionItem{}, err
	}

	logging.Info(ctx, "action item added",
		numberAttr(record.Number),
		slog.Uint64("item_id", added.ID),
		slog.String("assignee", added.Assignee),
	)
	return added, nil
}

// UpdateActionItemStatus sets an item status. When the last item completes and
// verification is required, the CAPA moves to verification.
func (s *Service) UpdateActionItemStatus(ctx context.Context, input UpdateActionItemStatusInput) (domaincapa.CAPA, error) {
	status, _ := domaincapa.ParseActionStatus(input.Status)
	now := s.now()

	record, err := s.mutate(ctx, opUpdateActionItem, input.Number, func(record *domaincapa.CAPA) error {
		_, err := record.SetActionItemStatus(input.ItemID, status, now)
		return err
	})
	if err != nil {
		return domaincapa.CAPA{}, err
	}

	logging.Debug(ctx, "action item status set",
		numberAttr(record.Number),
		slog.Uint64("item_id", input.ItemID),
		slog.String("status", string(status)),
	)
	return record, nil
}
