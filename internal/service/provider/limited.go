package provider

import (
	"context"
	"errors"
	"time"

	"MarketGate/internal/domain/models"
	"MarketGate/internal/domain/repository"
	"MarketGate/internal/service/ratelimit"
)

// ErrThrottled marks a call refused by the local token bucket before any
// request was sent.
var ErrThrottled = errors.New("client-side rate limit exhausted")

// IsThrottled reports whether err came from a local throttle rather than the upstream.
func IsThrottled(err error) bool { return errors.Is(err, ErrThrottled) }

// Limited wraps an Adapter and rejects calls with RateLimited once the
// provider's client-side token bucket is empty. The upstream is not touched.
type Limited struct {
	A        repository.Adapter
	Limiter  *ratelimit.Limiter
	Capacity float64
	Refill   float64 // tokens per second
}

// WithRateLimit decorates a with a token bucket; a non-positive refill disables limiting.
func WithRateLimit(a repository.Adapter, l *ratelimit.Limiter, capacity, refillPerSec float64) repository.Adapter {
	if l == nil || refillPerSec <= 0 {
		return a
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Limited{A: a, Limiter: l, Capacity: capacity, Refill: refillPerSec}
}

func (l *Limited) Name() string { return l.A.Name() }

func (l *Limited) Capabilities() models.Capabilities { return l.A.Capabilities() }

func (l *Limited) FetchQuote(ctx context.Context, symbol string) (*models.RawResult, error) {
	if err := l.take("quote"); err != nil {
		return nil, err
	}
	return l.A.FetchQuote(ctx, symbol)
}

func (l *Limited) FetchOHLCV(ctx context.Context, symbol string, r models.Range) (*models.RawResult, error) {
	if err := l.take("ohlcv"); err != nil {
		return nil, err
	}
	return l.A.FetchOHLCV(ctx, symbol, r)
}

func (l *Limited) FetchPriceAt(ctx context.Context, symbol string, ts time.Time, tolerance time.Duration) (*models.RawResult, error) {
	if err := l.take("price_at"); err != nil {
		return nil, err
	}
	return l.A.FetchPriceAt(ctx, symbol, ts, tolerance)
}

func (l *Limited) take(op string) error {
	if l.Limiter.Allow(l.A.Name(), l.Capacity, l.Refill) {
		return nil
	}
	return NewError(RateLimited, l.A.Name(), op, ErrThrottled)
}

var _ repository.Adapter = (*Limited)(nil)
