// Package store holds the idempotency ledger and the relay map behind one interface
// with in-memory, SQLite and Redis implementations.
package store

import (
	"context"
	"time"

	"rainrelay/internal/models"
)

// Store persists which events have fired and where relayed messages landed.
// TryMarkFired and SaveRelay are atomic test-and-set operations: concurrent callers
// with the same key see exactly one success.
type Store interface {
	TryMarkFired(ctx context.Context, key models.EventKey) (bool, error)
	HasFired(ctx context.Context, key models.EventKey) (bool, error)
	SaveRelay(ctx context.Context, mapping models.RelayMapping) (bool, error)
	LookupRelay(ctx context.Context, ref models.SourceMessageRef) (*models.DestinationRef, error)
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context) (models.StoreStats, error)
	Backend() string
	Close() error
}
