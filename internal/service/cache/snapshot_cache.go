package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"MarketGate/internal/domain/models"
	pkgcache "MarketGate/pkg/cache"
	applogger "MarketGate/pkg/logger"
)

type entry struct {
	Snapshot  models.MarketDataSnapshot `json:"snapshot"`
	ExpiresAt time.Time                 `json:"expires_at"`
}

// Option configures a SnapshotCache.
type Option func(*SnapshotCache)

// WithClock sets the clock used for ExpiresAt and lazy expiry.
func WithClock(now func() time.Time) Option {
	return func(c *SnapshotCache) { c.now = now }
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *SnapshotCache) { c.l = l }
}

// SnapshotCache stores accepted snapshots and collapses concurrent misses on
// the same key into a single upstream walk.
type SnapshotCache struct {
	store  pkgcache.Store
	policy TTLPolicy
	now    func() time.Time
	l      *applogger.Logger
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

func New(store pkgcache.Store, policy TTLPolicy, opts ...Option) *SnapshotCache {
	c := &SnapshotCache{store: store, policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns an unexpired snapshot. Store failures and undecodable entries
// count as misses.
func (c *SnapshotCache) Get(ctx context.Context, k Key) (*models.MarketDataSnapshot, bool) {
	snap, ok := c.Peek(ctx, k)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return snap, ok
}

// Peek is Get without touching the hit/miss counters.
func (c *SnapshotCache) Peek(ctx context.Context, k Key) (*models.MarketDataSnapshot, bool) {
	key := k.String()
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, pkgcache.ErrCacheMiss) {
			c.warn("snapshot cache read failed", key, err)
		}
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.warn("snapshot cache entry corrupt", key, err)
		_ = c.store.Delete(ctx, key)
		return nil, false
	}
	if c.now().After(e.ExpiresAt) {
		_ = c.store.Delete(ctx, key)
		return nil, false
	}

	snap := e.Snapshot
	snap.Meta.CacheHit = true
	return &snap, true
}

// Put stores snap under k and returns its expiry. Write failures are logged only.
func (c *SnapshotCache) Put(ctx context.Context, k Key, snap *models.MarketDataSnapshot) time.Time {
	now := c.now()
	ttl := c.policy.TTL(k, now)
	e := entry{Snapshot: *snap, ExpiresAt: now.Add(ttl)}
	e.Snapshot.Meta.CacheHit = false

	key := k.String()
	raw, err := json.Marshal(e)
	if err != nil {
		c.warn("snapshot cache encode failed", key, err)
		return e.ExpiresAt
	}
	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		c.warn("snapshot cache write failed", key, err)
	}
	return e.ExpiresAt
}

// Do runs fn once per key among concurrent callers. shared reports whether
// the result was produced for another caller too. A caller whose ctx ends
// stops waiting; the in-flight call keeps running for the others.
func (c *SnapshotCache) Do(ctx context.Context, k Key, fn func() (*models.MarketDataSnapshot, error)) (snap *models.MarketDataSnapshot, shared bool, err error) {
	ch := c.group.DoChan(k.String(), func() (interface{}, error) {
		return fn()
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Shared, res.Err
	}

	s := res.Val.(*models.MarketDataSnapshot)
	if res.Shared {
		// each caller gets its own copy
		cp := *s
		cp.Meta.FallbackChain = append([]string(nil), s.Meta.FallbackChain...)
		cp.Meta.QualityFlags = append([]models.QualityFlag(nil), s.Meta.QualityFlags...)
		s = &cp
	}
	return s, res.Shared, nil
}

// Stats returns hit/miss counters and the local entry count.
func (c *SnapshotCache) Stats() models.CacheStats {
	st := models.CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}
	if sized, ok := c.store.(interface{ Len() int }); ok {
		st.Entries = sized.Len()
	}
	return st
}

func (c *SnapshotCache) warn(msg, key string, err error) {
	if c.l == nil {
		return
	}
	c.l.Warn(msg, applogger.String("key", key), applogger.Error(err))
}
