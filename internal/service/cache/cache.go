package cache

import (
	"context"
	"time"
)

// BytesCache stores raw bytes with a TTL. It backs the hourly weather cache,
// which wants plain bytes rather than the typed JSON cache in pkg/cache.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
