// Package cache memoises derived imagery results (statistics, tile URLs).
package cache

import (
	"context"
	"time"
)

// Remote is the shared tier behind the in-process LRU.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
