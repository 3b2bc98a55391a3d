package uow

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"

	"capaflow/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm. SQLite allows one writer at
// a time, so callers queue on mu instead of racing into SQLITE_BUSY.
type UnitOfWork struct {
	db *gorm.DB
	mu sync.Mutex
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// WithTx joins an enclosing transaction when ctx already carries one.
func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if ports.TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	})
}
