package capa

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"capaflow/internal/bootstrap/logging"
	"capaflow/internal/errs"
)

// SweepScheduler runs SweepOverdue on a standard 5-field cron expression
// (minute hour day-of-month month day-of-week), e.g. "0 6 * * *" for 06:00 daily.
type SweepScheduler struct {
	svc      *Service
	expr     string
	schedule cron.Schedule
	location *time.Location
}

func NewSweepScheduler(svc *Service, expr string, location *time.Location) (*SweepScheduler, error) {
	if svc == nil {
		return nil, errors.New("capa service is required")
	}
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("sweep schedule is required")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, errs.Wrapf(err, "parse sweep schedule %q", expr)
	}
	if location == nil {
		location = time.UTC
	}
	return &SweepScheduler{svc: svc, expr: expr, schedule: schedule, location: location}, nil
}

// Next returns the first activation strictly after now.
func (s *SweepScheduler) Next(now time.Time) time.Time {
	return s.schedule.Next(now.In(s.location))
}

// Run blocks until ctx is cancelled, sweeping at every activation. A failed
// sweep is logged and the loop continues with the next activation.
func (s *SweepScheduler) Run(ctx context.Context) error {
	if ctx == nil {
		return errContextRequired
	}
	ctx = logging.WithAttrs(ctx, slog.String("component", "sweep_scheduler"), slog.String("schedule", s.expr))

	for {
		now := s.svc.now()
		next := s.Next(now)
		wait := next.Sub(now)
		logging.Info(ctx, "next overdue sweep scheduled",
			slog.Time("at", next),
			slog.Duration("in", wait.Round(time.Second)),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if _, err := s.svc.SweepOverdue(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.Error(ctx, "overdue sweep failed", errAttr(err))
		}
	}
}
