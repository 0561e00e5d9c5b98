package domain

import (
	"context"
	"io"
	"time"
)

// LockManager provides mutual exclusion for trade commits. The lock key is
// the commit unit: the market id, or market:answer for multi markets whose
// answers trade independently.
type LockManager interface {
	// Acquire returns an unlock function on success, or ErrLockHeld when
	// another commit is in flight for the same unit.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// SignalBus publishes engine events (committed trades, order cancellations,
// aggregation runs) for downstream consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	// StreamAppend appends to a durable, trimmed event stream.
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// RateLimiter limits requests per key per window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// BlobWriter stores opaque objects, used for season ledger snapshots.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
