package store

import (
	"context"
	"errors"
	"time"
)

// Provider defines the keyed-store operations the decision engine depends on:
// TTL-expiring keys, bounded ordered lists, and set membership. Per-key
// operations are the unit of atomicity; the engine never needs transactions.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error

	// ListPush prepends a value, so index 0 is always the newest entry.
	ListPush(ctx context.Context, key string, value []byte) error
	ListRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
	ListTrim(ctx context.Context, key string, start, stop int64) error
	ListLen(ctx context.Context, key string) (int64, error)

	SetAdd(ctx context.Context, key string, member string) error
	SetMembers(ctx context.Context, key string) ([]string, error)

	Close() error
}

// ErrNotFound signals that a key was absent.
var ErrNotFound = errors.New("store: key not found")
