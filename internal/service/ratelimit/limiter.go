package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// Limiter keeps one token bucket per key. Each bucket has its own lock.
type Limiter struct {
	buckets sync.Map // key -> *bucket
	now     func() time.Time
}

func New(opts ...Option) *Limiter {
	l := &Limiter{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow returns true if one token can be consumed for key. The capacity and
// refill rate given on the first call for a key are kept.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	b := l.bucket(key, capacity, refillPerSec)

	b.mu.Lock()
	defer b.mu.Unlock()
	now := l.now()
	// refill
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func (l *Limiter) bucket(key string, capacity, refillPerSec float64) *bucket {
	if v, ok := l.buckets.Load(key); ok {
		return v.(*bucket)
	}
	v, _ := l.buckets.LoadOrStore(key, &bucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: refillPerSec,
		last:       l.now(),
	})
	return v.(*bucket)
}
