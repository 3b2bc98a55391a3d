package capa

import (
	"context"
	"log/slog"

	"capaflow/internal/bootstrap/logging"
	domaincapa "capaflow/internal/domain/capa"
)

const opRecordVerification = "record_verification"

// RecordVerification appends a verification record. An effective result closes
// the CAPA with the given rating; partial or not_effective keeps it in verification.
func (s *Service) RecordVerification(ctx context.Context, input RecordVerificationInput) (domaincapa.CAPA, error) {
	result, _ := domaincapa.ParseVerificationResult(input.Result)
	now := s.now()

	var rec domaincapa.VerificationRecord
	record, err := s.mutate(ctx, opRecordVerification, input.Number, func(record *domaincapa.CAPA) error {
		var err error
		rec, err = record.RecordVerification(domaincapa.NewVerification{
			Verifier: input.Verifier,
			Result:   result,
			Notes:    input.Notes,
			Rating:   input.Rating,
		}, now)
		return err
	})
	if err != nil {
		return domaincapa.CAPA{}, err
	}

	if s.metrics != nil {
		s.metrics.VerificationRecorded(string(rec.Result))
	}
	attrs := []slog.Attr{
		numberAttr(record.Number),
		slog.Uint64("verification_id", rec.ID),
		slog.String("result", string(rec.Result)),
	}
	if record.EffectivenessRating != nil {
		attrs = append(attrs, slog.Int("effectiveness_rating", *record.EffectivenessRating))
	}
	logging.Info(ctx, "verification recorded", attrs...)
	return record, nil
}
