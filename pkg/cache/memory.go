package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// MemoryItem stores cached value with expiration.
type MemoryItem struct {
	Value    []byte
	ExpireAt time.Time
	access   time.Time
}

type shard struct {
	mu   sync.Mutex
	data map[string]*MemoryItem
}

// MemoryCache is a sharded in-process Store with LRU eviction per shard.
type MemoryCache struct {
	shards   []*shard
	perShard int
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         10000,
		Shards:          16,
		CleanupInterval: 5 * time.Minute,
		Now:             time.Now,
	}

	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Shards < 1 {
		cfg.Shards = 1
	}
	perShard := cfg.MaxSize / cfg.Shards
	if perShard < 1 {
		perShard = 1
	}

	mc := &MemoryCache{
		shards:   make([]*shard, cfg.Shards),
		perShard: perShard,
		now:      cfg.Now,
		stop:     make(chan struct{}),
	}
	for i := range mc.shards {
		mc.shards[i] = &shard{data: make(map[string]*MemoryItem)}
	}

	if cfg.CleanupInterval > 0 {
		go mc.cleanupExpired(cfg.CleanupInterval)
	}
	return mc
}

func (mc *MemoryCache) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return mc.shards[h.Sum32()%uint32(len(mc.shards))]
}

func (mc *MemoryCache) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	now := mc.now()
	expireAt := now.Add(expiration)
	if expiration <= 0 {
		expireAt = now.Add(7 * 24 * time.Hour) // default 7 days
	}

	s := mc.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok && len(s.data) >= mc.perShard {
		s.evictLRU(now)
	}
	s.data[key] = &MemoryItem{Value: value, ExpireAt: expireAt, access: now}
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	now := mc.now()
	s := mc.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.data[key]
	if !exists {
		return nil, ErrCacheMiss
	}
	if now.After(item.ExpireAt) {
		delete(s.data, key)
		return nil, ErrCacheMiss
	}
	item.access = now
	return item.Value, nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s := mc.shardFor(key)
		s.mu.Lock()
		delete(s.data, key)
		s.mu.Unlock()
	}
	return nil
}

// Len returns the number of stored items, expired ones included until swept.
func (mc *MemoryCache) Len() int {
	n := 0
	for _, s := range mc.shards {
		s.mu.Lock()
		n += len(s.data)
		s.mu.Unlock()
	}
	return n
}

// Sweep drops expired items from every shard.
func (mc *MemoryCache) Sweep() int {
	now := mc.now()
	removed := 0
	for _, s := range mc.shards {
		s.mu.Lock()
		for key, item := range s.data {
			if now.After(item.ExpireAt) {
				delete(s.data, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

func (s *shard) evictLRU(now time.Time) {
	var oldestKey string
	oldestTime := now.Add(time.Nanosecond)

	for key, item := range s.data {
		if item.access.Before(oldestTime) {
			oldestTime = item.access
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(s.data, oldestKey)
	}
}

func (mc *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-mc.stop:
			return
		case <-ticker.C:
			mc.Sweep()
		}
	}
}

// Close stops the cleanup goroutine.
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() { close(mc.stop) })
	return nil
}

var _ Store = (*MemoryCache)(nil)
