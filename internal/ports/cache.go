package ports

import (
	"context"
	"time"
)

// Cache is a key-value side store for derived snapshots (for example the last
// committed status of a CAPA). It is written after commit and may be stale;
// the repository stays the source of truth.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
