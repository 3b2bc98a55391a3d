package capa

import (
	"context"
	"log/slog"

	"capaflow/internal/bootstrap/logging"
	domaincapa "capaflow/internal/domain/capa"
	"capaflow/internal/errs"
)

const opCreate = "create"

// CreateCAPA validates the input, takes the next number from the store counter
// and inserts a draft in the same transaction.
func (s *Service) CreateCAPA(ctx context.Context, input CreateCAPAInput) (domaincapa.CAPA, error) {
	if err := s.readyForWrite(ctx); err != nil {
		return domaincapa.CAPA{}, err
	}
	if err := input.Validate(); err != nil {
		s.recordFailure(ctx, opCreate, err)
		return domaincapa.CAPA{}, err
	}

	now := s.now()
	var created domaincapa.CAPA
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		seq, err := s.repo.NextNumber(txCtx)
		if err != nil {
			return err
		}
		record, err := domaincapa.New(input, domaincapa.FormatNumber(seq), now)
		if err != nil {
			return err
		}
		if err := s.repo.Create(txCtx, record); err != nil {
			return err
		}
		created = record
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, opCreate, err)
		return domaincapa.CAPA{}, errs.Wrap(err, "create capa")
	}

	if s.metrics != nil {
		s.metrics.CAPACreated(string(created.Type))
	}
	s.setCacheBestEffort(ctx, cacheStatusKey(created.Number), string(created.Status))
	logging.Info(ctx, "capa created",
		numberAttr(created.Number),
		slog.String("type", string(created.Type)),
		slog.String("priority", string(created.Priority)),
	)
	return created, nil
}
