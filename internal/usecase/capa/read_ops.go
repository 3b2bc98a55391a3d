package capa

import (
	"context"

	domaincapa "capaflow/internal/domain/capa"
	"capaflow/internal/errs"
	"capaflow/internal/ports"
)

func (s *Service) GetCAPA(ctx context.Context, rawNumber string) (CAPADetail, error) {
	if err := s.ready(ctx); err != nil {
		return CAPADetail{}, err
	}
	number, err := parseNumber(rawNumber)
	if err != nil {
		return CAPADetail{}, err
	}

	record, err := s.repo.Get(ctx, number)
	if err != nil {
		return CAPADetail{}, errs.Wrapf(err, "get %s", number)
	}
	return toDetail(record, s.now()), nil
}

func (s *Service) ListCAPAs(ctx context.Context, input ListCAPAsInput) ([]CAPADetail, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	records, err := s.repo.List(ctx, input.Filter)
	if err != nil {
		return nil, errs.Wrap(err, "list capas")
	}

	now := s.now()
	out := make([]CAPADetail, 0, len(records))
	for _, record := range records {
		if input.OverdueOnly && !record.IsOverdue(now) {
			continue
		}
		out = append(out, toDetail(record, now))
	}
	return out, nil
}

// Statistics folds every stored CAPA into counts by type and status bucket.
func (s *Service) Statistics(ctx context.Context) (domaincapa.Statistics, error) {
	if err := s.ready(ctx); err != nil {
		return domaincapa.Statistics{}, err
	}

	records, err := s.repo.List(ctx, ports.CAPAFilter{})
	if err != nil {
		return domaincapa.Statistics{}, errs.Wrap(err, "list capas for statistics")
	}
	return domaincapa.Summarize(records, s.now()), nil
}

// CachedStatus answers from the status cache and falls back to the repository,
// refilling the cache on a miss.
func (s *Service) CachedStatus(ctx context.Context, rawNumber string) (domaincapa.Status, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	number, err := parseNumber(rawNumber)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		value, found, err := s.cache.Get(ctx, cacheStatusKey(number))
		if err == nil && found {
			if status, ok := domaincapa.ParseStatus(value); ok {
				return status, nil
			}
		}
	}

	record, err := s.repo.Get(ctx, number)
	if err != nil {
		return "", errs.Wrapf(err, "get %s", number)
	}
	s.setCacheBestEffort(ctx, cacheStatusKey(number), string(record.Status))
	return record.Status, nil
}
