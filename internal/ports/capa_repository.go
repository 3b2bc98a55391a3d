package ports

import (
	"context"

	"capaflow/internal/domain/capa"
)

type CAPAFilter struct {
	Statuses   []capa.Status
	Type       capa.Type
	Priority   capa.Priority
	Category   capa.Category
	Assignee   string
	Search     string
	OnlyActive bool
}

// CAPARepository persists whole aggregates. Get returns a *capa.NotFoundError
// for unknown numbers. Writes must run inside UnitOfWork.WithTx.
type CAPARepository interface {
	NextNumber(ctx context.Context) (uint64, error)
	Create(ctx context.Context, record capa.CAPA) error
	Get(ctx context.Context, number string) (capa.CAPA, error)
	List(ctx context.Context, filter CAPAFilter) ([]capa.CAPA, error)
	Save(ctx context.Context, record capa.CAPA) error
	Delete(ctx context.Context, number string) error
}
