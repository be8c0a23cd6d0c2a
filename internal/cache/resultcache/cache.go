// Package resultcache memoises small derived results in two tiers: an
// in-process LRU in front of an optional shared Remote (Redis).
package resultcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/cache"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/observability"
)

const (
	tierLocal  = "local"
	tierRemote = "remote"
)

type Config struct {
	Size      int
	TTL       time.Duration
	OpTimeout time.Duration
}

// Cache is safe for concurrent use. A nil *Cache is valid and caches nothing.
type Cache struct {
	local  *lru.Cache[string, entry]
	remote cache.Remote
	cfg    Config
	log    *slog.Logger
	now    func() time.Time
}

type entry struct {
	val     []byte
	expires time.Time
}

// New builds a cache; remote may be nil.
func New(cfg Config, remote cache.Remote, log *slog.Logger) *Cache {
	if cfg.Size <= 0 {
		cfg.Size = 1024
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 250 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	c, _ := lru.New[string, entry](cfg.Size)
	return &Cache{local: c, remote: remote, cfg: cfg, log: log, now: time.Now}
}

// Get looks in the local tier, then the remote one. Remote hits are copied
// into the local tier. Remote failures count as misses.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	if e, ok := c.local.Get(key); ok {
		if c.now().Before(e.expires) {
			observability.IncCacheHit(tierLocal)
			return e.val, true
		}
		c.local.Remove(key)
	}
	observability.IncCacheMiss(tierLocal)

	if c.remote == nil {
		return nil, false
	}
	rctx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()
	val, ok, err := c.remote.Get(rctx, key)
	if err != nil {
		c.log.WarnContext(ctx, "result cache remote get failed", "key", key, "err", err)
	}
	if err != nil || !ok {
		observability.IncCacheMiss(tierRemote)
		return nil, false
	}
	observability.IncCacheHit(tierRemote)
	c.local.Add(key, entry{val: val, expires: c.now().Add(c.cfg.TTL)})
	return val, true
}

// Set writes both tiers. A remote failure is logged, not returned.
func (c *Cache) Set(ctx context.Context, key string, val []byte) {
	if c == nil {
		return
	}
	c.local.Add(key, entry{val: val, expires: c.now().Add(c.cfg.TTL)})
	if c.remote == nil {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()
	if err := c.remote.Set(rctx, key, val, c.cfg.TTL); err != nil {
		c.log.WarnContext(ctx, "result cache remote set failed", "key", key, "err", err)
	}
}

// Invalidate drops keys from both tiers.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	for _, k := range keys {
		c.local.Remove(k)
	}
	if c.remote == nil {
		return nil
	}
	rctx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()
	return c.remote.Del(rctx, keys...)
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.local.Len()
}

// Do returns the cached value for key or computes, stores and returns it.
// Errors from fn are never cached.
func Do[T any](ctx context.Context, c *Cache, key string, fn func(context.Context) (T, error)) (T, error) {
	if raw, ok := c.Get(ctx, key); ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		c.log.WarnContext(ctx, "result cache entry undecodable, recomputing", "key", key)
	}
	v, err := fn(ctx)
	if err != nil {
		return v, err
	}
	if c != nil {
		if raw, err := json.Marshal(v); err == nil {
			c.Set(ctx, key, raw)
		}
	}
	return v, nil
}
