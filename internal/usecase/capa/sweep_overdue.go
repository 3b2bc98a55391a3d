package capa

import (
	"context"
	"log/slog"
	"time"

	"capaflow/internal/bootstrap/logging"
	domaincapa "capaflow/internal/domain/capa"
	"capaflow/internal/errs"
	"capaflow/internal/ports"
)

// SweepOverdue labels unfinished action items past their due date as overdue.
// Each item goes through UpdateActionItemStatus; a failing item is logged and
// counted without stopping the sweep.
func (s *Service) SweepOverdue(ctx context.Context) (SweepResult, error) {
	if err := s.readyForWrite(ctx); err != nil {
		return SweepResult{}, err
	}

	records, err := s.repo.List(ctx, ports.CAPAFilter{OnlyActive: true})
	if err != nil {
		return SweepResult{}, errs.Wrap(err, "list active capas")
	}

	now := s.now()
	var result SweepResult
	for _, record := range records {
		result.Scanned++
		for _, item := range record.ActionItems {
			if !sweepable(item, now) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return result, err
			}
			_, err := s.UpdateActionItemStatus(ctx, UpdateActionItemStatusInput{
				Number: record.Number,
				ItemID: item.ID,
				Status: string(domaincapa.ActionOverdue),
			})
			if err != nil {
				result.Failed++
				logging.Warn(ctx, "overdue sweep skipped item",
					numberAttr(record.Number),
					slog.Uint64("item_id", item.ID),
					errAttr(err),
				)
				continue
			}
			result.Marked++
		}
	}

	logging.Info(ctx, "overdue sweep finished",
		slog.Int("scanned", result.Scanned),
		slog.Int("marked", result.Marked),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}

func sweepable(item domaincapa.ActionItem, now time.Time) bool {
	switch item.Status {
	case domaincapa.ActionPending, domaincapa.ActionInProgress:
		return item.IsOverdue(now)
	default:
		return false
	}
}
