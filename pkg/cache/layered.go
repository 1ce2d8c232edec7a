package cache

import (
	"context"
	"errors"
	"time"
)

// LayeredCache implements two-level cache (L1: Memory, L2: any Store, usually Redis).
type LayeredCache struct {
	memCache *MemoryCache
	l2       Store
	fillTTL  time.Duration
}

// NewLayeredCache creates a layered cache. A nil l2 leaves only the memory layer.
func NewLayeredCache(mem *MemoryCache, l2 Store, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		FillTTL: time.Minute,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &LayeredCache{memCache: mem, l2: l2, fillTTL: cfg.FillTTL}
}

// Set writes through to both layers. The memory layer is always written; an L2
// error is returned to the caller.
func (lc *LayeredCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	_ = lc.memCache.Set(ctx, key, value, expiration)
	if lc.l2 == nil {
		return nil
	}
	return lc.l2.Set(ctx, key, value, expiration)
}

func (lc *LayeredCache) Get(ctx context.Context, key string) ([]byte, error) {
	// L1: Try memory first
	if v, err := lc.memCache.Get(ctx, key); err == nil {
		return v, nil
	}
	if lc.l2 == nil {
		return nil, ErrCacheMiss
	}

	// L2
	v, err := lc.l2.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	// Store in memory for next time
	_ = lc.memCache.Set(ctx, key, v, lc.fillTTL)
	return v, nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.memCache.Delete(ctx, keys...)
	if lc.l2 == nil {
		return nil
	}
	return lc.l2.Delete(ctx, keys...)
}

// Len reports the L1 entry count.
func (lc *LayeredCache) Len() int {
	return lc.memCache.Len()
}

// Close closes both cache layers.
func (lc *LayeredCache) Close() error {
	_ = lc.memCache.Close()
	if lc.l2 == nil {
		return nil
	}
	return lc.l2.Close()
}

var _ Store = (*LayeredCache)(nil)
