package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketGate/internal/domain/models"
	pkgcache "MarketGate/pkg/cache"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Friday.
var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newCache(t *testing.T, policy TTLPolicy) (*SnapshotCache, *clock) {
	t.Helper()
	clk := &clock{t: base}
	mem := pkgcache.NewMemoryCache(pkgcache.WithMemoryClock(clk.Now), pkgcache.WithMemoryCleanup(0))
	t.Cleanup(func() { _ = mem.Close() })
	return New(mem, policy, WithClock(clk.Now)), clk
}

func snapshot(symbol string) *models.MarketDataSnapshot {
	p := "finnhub"
	return &models.MarketDataSnapshot{
		Symbol:  symbol,
		Kind:    models.KindQuote,
		Payload: &models.Payload{Quote: &models.Quote{Price: 150.23}},
		Meta: models.SnapshotMeta{
			ProviderUsed:     &p,
			FallbackChain:    []string{"finnhub"},
			QualityFlags:     []models.QualityFlag{},
			DataCompleteness: 0.8,
			FetchedAt:        base,
		},
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "md:quote:AAPL:latest", QuoteKey("AAPL").String())

	r := models.Range{Start: base, End: base.Add(24 * time.Hour), MinPoints: 2}
	k := OHLCVKey("AAPL", r)
	assert.Equal(t, "md:ohlcv:AAPL:1d/1709294400/1709380800/2", k.String())
	assert.False(t, k.Intraday)
	r.Interval = "5m"
	assert.True(t, OHLCVKey("AAPL", r).Intraday)

	old := PriceAtKey("AAPL", base.Add(-72*time.Hour), time.Hour, base)
	assert.True(t, old.Historical)
	assert.Equal(t, "md:price_at:AAPL:1709035200/3600", old.String())
	assert.False(t, PriceAtKey("AAPL", base.Add(-time.Hour), time.Hour, base).Historical)
}

func TestTTLPolicy(t *testing.T) {
	p := DefaultTTLPolicy()
	require.NoError(t, p.Validate())

	at := func(d, h, m int) time.Time { return time.Date(2024, 3, d, h, m, 0, 0, time.UTC) }

	assert.Equal(t, p.QuoteTTL, p.TTL(QuoteKey("AAPL"), base))
	assert.Equal(t, p.QuoteTTL, p.TTL(Key{Kind: models.KindOHLCV, Intraday: true}, base))
	assert.Equal(t, p.HistoricalTTL, p.TTL(Key{Kind: models.KindPriceAt, Historical: true}, base))

	daily := Key{Kind: models.KindOHLCV}
	assert.Equal(t, 10*time.Minute, p.TTL(daily, at(1, 21, 50)))
	assert.Equal(t, p.MinTTL, p.TTL(daily, at(1, 21, 59).Add(30*time.Second)))
	assert.Equal(t, p.OHLCVMaxTTL, p.TTL(daily, at(1, 23, 0)))
	assert.Equal(t, 10*time.Minute, p.TTL(Key{Kind: models.KindPriceAt}, at(1, 21, 50)))

	// weekend rolls to Monday
	assert.Equal(t, at(4, 22, 0), p.NextRefresh(at(1, 23, 0)))
	assert.Equal(t, at(4, 22, 0), p.NextRefresh(at(2, 10, 0)))
	assert.Equal(t, at(1, 22, 0), p.NextRefresh(at(1, 0, 0)))

	wide := p
	wide.OHLCVMaxTTL = 72 * time.Hour
	assert.Equal(t, 71*time.Hour, wide.TTL(daily, at(1, 23, 0)))

	bad := TTLPolicy{RefreshHourUTC: 24}
	assert.Error(t, bad.Validate())
}

func TestGetPut_LazyExpiryBoundary(t *testing.T) {
	policies := []TTLPolicy{DefaultTTLPolicy(), {QuoteTTL: 7 * time.Second, OHLCVMaxTTL: time.Hour, HistoricalTTL: time.Hour, MinTTL: time.Second, RefreshHourUTC: 0}}
	for _, p := range policies {
		t.Run(p.QuoteTTL.String(), func(t *testing.T) {
			c, clk := newCache(t, p)
			ctx := context.Background()
			k := QuoteKey("AAPL")

			_, ok := c.Get(ctx, k)
			assert.False(t, ok)

			exp := c.Put(ctx, k, snapshot("AAPL"))
			assert.Equal(t, base.Add(p.QuoteTTL), exp)

			clk.Set(exp.Add(-time.Second))
			got, ok := c.Get(ctx, k)
			require.True(t, ok)
			assert.True(t, got.Meta.CacheHit)
			assert.Equal(t, "finnhub", got.Provider())
			assert.InDelta(t, 150.23, got.Payload.Quote.Price, 1e-9)

			clk.Set(exp.Add(time.Second))
			_, ok = c.Get(ctx, k)
			assert.False(t, ok)

			st := c.Stats()
			assert.Equal(t, int64(1), st.Hits)
			assert.Equal(t, int64(2), st.Misses)
			assert.InDelta(t, 1.0/3.0, st.HitRate, 1e-9)
			assert.Zero(t, st.Entries)
		})
	}
}

type flakyStore struct{ pkgcache.Store }

func (flakyStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("redis down") }
func (flakyStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("redis down")
}

func TestStoreErrorsAreMisses(t *testing.T) {
	c := New(flakyStore{}, DefaultTTLPolicy())
	c.Put(context.Background(), QuoteKey("AAPL"), snapshot("AAPL"))
	_, ok := c.Get(context.Background(), QuoteKey("AAPL"))
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestCorruptEntryIsDropped(t *testing.T) {
	mem := pkgcache.NewMemoryCache(pkgcache.WithMemoryCleanup(0))
	defer mem.Close()
	c := New(mem, DefaultTTLPolicy())
	k := QuoteKey("AAPL")
	_ = mem.Set(context.Background(), k.String(), []byte("{not json"), time.Hour)

	_, ok := c.Get(context.Background(), k)
	assert.False(t, ok)
	assert.Zero(t, mem.Len())
}

func TestDo_CollapsesConcurrentCallers(t *testing.T) {
	c, _ := newCache(t, DefaultTTLPolicy())
	k := QuoteKey("AAPL")

	const n = 32
	var calls atomic.Int32
	release := make(chan struct{})
	var started sync.WaitGroup
	var done sync.WaitGroup
	results := make([]*models.MarketDataSnapshot, n)

	for i := 0; i < n; i++ {
		started.Add(1)
		done.Add(1)
		go func(i int) {
			defer done.Done()
			started.Done()
			snap, _, err := c.Do(context.Background(), k, func() (*models.MarketDataSnapshot, error) {
				calls.Add(1)
				<-release
				return snapshot("AAPL"), nil
			})
			assert.NoError(t, err)
			results[i] = snap
		}(i)
	}
	started.Wait()
	// give every goroutine time to join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "AAPL", r.Symbol)
	}
}

func TestSnapshotCache_DoCallerCancel(t *testing.T) {
	c := New(pkgcache.NewMemoryCache(pkgcache.WithMemoryCleanup(0)), DefaultTTLPolicy())
	k := QuoteKey("MSFT")

	release := make(chan struct{})
	entered := make(chan struct{})
	leaderDone := make(chan *models.MarketDataSnapshot, 1)
	go func() {
		snap, _, err := c.Do(context.Background(), k, func() (*models.MarketDataSnapshot, error) {
			close(entered)
			<-release
			return snapshot("MSFT"), nil
		})
		assert.NoError(t, err)
		leaderDone <- snap
	}()
	<-entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap, _, err := c.Do(ctx, k, func() (*models.MarketDataSnapshot, error) {
		t.Error("follower must not start a second call")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, snap)

	close(release)
	got := <-leaderDone
	require.NotNil(t, got)
	assert.Equal(t, "MSFT", got.Symbol)
}
