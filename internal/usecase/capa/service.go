package capa

import (
	"context"
	"errors"
	"time"

	domaincapa "capaflow/internal/domain/capa"
	"capaflow/internal/ports"
)

var (
	errContextRequired = errors.New("context is required")
	errRepoRequired    = errors.New("capa repository is required")
	errUoWRequired     = errors.New("capa unit of work is required")
)

type Service struct {
	repo    ports.CAPARepository
	uow     ports.UnitOfWork
	cache   ports.Cache
	clock   ports.Clock
	metrics ports.WorkflowMetrics
}

// NewService wires CAPA usecases. cache and metrics are optional; a nil clock
// falls back to the system clock.
func NewService(repo ports.CAPARepository, uow ports.UnitOfWork, cache ports.Cache, clock ports.Clock, metrics ports.WorkflowMetrics) *Service {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Service{
		repo:    repo,
		uow:     uow,
		cache:   cache,
		clock:   clock,
		metrics: metrics,
	}
}

type CreateCAPAInput = domaincapa.NewCAPA

type AddActionItemInput struct {
	Number      string
	Description string
	Assignee    string
	DueDate     time.Time
	Notes       string
}

type UpdateActionItemStatusInput struct {
	Number string
	ItemID uint64
	Status string
}

type RecordVerificationInput struct {
	Number   string
	Verifier string
	Result   string
	Rating   *int
	Notes    string
}

type UpdateCAPAInput struct {
	Number string
	Patch  domaincapa.Patch
}

type ListCAPAsInput struct {
	Filter      ports.CAPAFilter
	OverdueOnly bool
}

// CAPADetail is a CAPA plus the values derived from it at read time.
type CAPADetail struct {
	domaincapa.CAPA
	Progress     int
	Overdue      bool
	OverdueItems []uint64
}

type SweepResult struct {
	Scanned int
	Marked  int
	Failed  int
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *Service) ready(ctx context.Context) error {
	if ctx == nil {
		return errContextRequired
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.repo == nil {
		return errRepoRequired
	}
	return nil
}

func (s *Service) readyForWrite(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if s.uow == nil {
		return errUoWRequired
	}
	return nil
}

func (s *Service) setCacheBestEffort(ctx context.Context, key string, value string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, value, 0)
}

func (s *Service) deleteCacheBestEffort(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, key)
}
