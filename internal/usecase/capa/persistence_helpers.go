package capa

import (
	"context"
	"log/slog"

	"capaflow/internal/bootstrap/logging"
	domaincapa "capaflow/internal/domain/capa"
	"capaflow/internal/errs"
)

type transition struct {
	number string
	from   domaincapa.Status
	to     domaincapa.Status
}

// mutate runs load, fn, derive and save inside one unit of work. The status is
// recomputed from the aggregate after fn, so callers never assign it directly
// unless fn itself performs an administrative transition.
func (s *Service) mutate(ctx context.Context, op string, rawNumber string, fn func(record *domaincapa.CAPA) error) (domaincapa.CAPA, error) {
	if err := s.readyForWrite(ctx); err != nil {
		return domaincapa.CAPA{}, err
	}
	number, err := parseNumber(rawNumber)
	if err != nil {
		s.recordFailure(ctx, op, err)
		return domaincapa.CAPA{}, err
	}

	var (
		saved domaincapa.CAPA
		moved transition
	)
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		record, err := s.repo.Get(txCtx, number)
		if err != nil {
			return err
		}
		from := record.Status
		if err := fn(&record); err != nil {
			return err
		}
		record.Status = domaincapa.DeriveStatus(record)
		if err := s.repo.Save(txCtx, record); err != nil {
			return err
		}
		saved = record
		moved = transition{number: number, from: from, to: record.Status}
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, op, err)
		return domaincapa.CAPA{}, errs.Wrapf(err, "%s %s", op, number)
	}

	s.afterCommit(ctx, moved)
	return saved, nil
}

// afterCommit publishes side effects of a committed mutation. It runs outside
// the transaction so the cache write never competes with the writer.
func (s *Service) afterCommit(ctx context.Context, t transition) {
	s.setCacheBestEffort(ctx, cacheStatusKey(t.number), string(t.to))
	if t.from == t.to {
		return
	}
	if s.metrics != nil {
		s.metrics.StatusChanged(string(t.from), string(t.to))
	}
	logging.Info(ctx, "capa status changed",
		numberAttr(t.number),
		slog.String("from", string(t.from)),
		slog.String("to", string(t.to)),
	)
}

func (s *Service) recordFailure(ctx context.Context, op string, err error) {
	if s.metrics != nil {
		s.metrics.OperationFailed(op, errs.KindOf(err))
	}
	logging.Debug(ctx, "capa operation rejected", slog.String("operation", op), errAttr(err))
}
