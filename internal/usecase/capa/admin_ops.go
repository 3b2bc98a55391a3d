package capa

import (
	"context"
	"log/slog"
	"strings"

	"capaflow/internal/bootstrap/logging"
	domaincapa "capaflow/internal/domain/capa"
	"capaflow/internal/errs"
)

const (
	opOpen   = "open"
	opCancel = "cancel"
	opUpdate = "update"
	opDelete = "delete"
)

// OpenCAPA submits a draft for execution.
func (s *Service) OpenCAPA(ctx context.Context, number string) (domaincapa.CAPA, error) {
	return s.mutate(ctx, opOpen, number, func(record *domaincapa.CAPA) error {
		return record.Open()
	})
}

// CancelCAPA moves any non-terminal CAPA to cancelled.
func (s *Service) CancelCAPA(ctx context.Context, number string, reason string) (domaincapa.CAPA, error) {
	record, err := s.mutate(ctx, opCancel, number, func(record *domaincapa.CAPA) error {
		return record.Cancel()
	})
	if err != nil {
		return domaincapa.CAPA{}, err
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		logging.Info(ctx, "capa cancelled", numberAttr(record.Number), slog.String("reason", reason))
	}
	return record, nil
}

// UpdateCAPA applies a patch and re-derives the status, so enabling the
// verification requirement with every item complete moves the CAPA to verification.
func (s *Service) UpdateCAPA(ctx context.Context, input UpdateCAPAInput) (domaincapa.CAPA, error) {
	return s.mutate(ctx, opUpdate, input.Number, func(record *domaincapa.CAPA) error {
		return record.ApplyPatch(input.Patch)
	})
}

// DeleteCAPA removes the CAPA with its action items, verification records and NCR links.
func (s *Service) DeleteCAPA(ctx context.Context, rawNumber string) error {
	if err := s.readyForWrite(ctx); err != nil {
		return err
	}
	number, err := parseNumber(rawNumber)
	if err != nil {
		s.recordFailure(ctx, opDelete, err)
		return err
	}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.Delete(txCtx, number)
	}); err != nil {
		s.recordFailure(ctx, opDelete, err)
		return errs.Wrapf(err, "delete %s", number)
	}

	s.deleteCacheBestEffort(ctx, cacheStatusKey(number))
	logging.Info(ctx, "capa deleted", numberAttr(number))
	return nil
}
