package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"MarketGate/internal/domain/models"
	"MarketGate/internal/domain/repository"
	domsvc "MarketGate/internal/domain/service"
	"MarketGate/internal/service/breaker"
	svccache "MarketGate/internal/service/cache"
	"MarketGate/internal/service/quarantine"
	"MarketGate/internal/service/symbol"
	pkgcache "MarketGate/pkg/cache"
	applogger "MarketGate/pkg/logger"
)

var (
	// ErrInvalidSymbol is returned when a raw symbol cannot be normalized.
	ErrInvalidSymbol = errors.New("invalid symbol")
	// ErrInvalidRange is returned for malformed OHLCV ranges or price-at tolerances.
	ErrInvalidRange = errors.New("invalid range")
)

// Lookup outcomes reported to metrics.
const (
	outcomeHit              = "hit"
	outcomeOK               = "ok"
	outcomeDegraded         = "degraded"
	outcomeQuarantined      = "quarantined"
	outcomeIntradayDisabled = "intraday_disabled"
	outcomeInvalid          = "invalid"
)

const publishTimeout = 5 * time.Second

// MaxBatchConcurrency caps in-flight lookups of one batch whatever the caller asks for.
const MaxBatchConcurrency = 64

// GatewayConfig holds orchestration policy.
type GatewayConfig struct {
	// ProviderOrder is the fallback chain. Empty means the adapters' given order.
	ProviderOrder []string
	// IntradayApproved lists providers allowed to serve sub-daily intervals.
	IntradayApproved []string
	MinCompleteness  float64
	ProviderTimeout  time.Duration
	BatchConcurrency int
	Breaker          breaker.Config
	Quarantine       quarantine.Config
	TTL              svccache.TTLPolicy
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		MinCompleteness:  domsvc.DefaultMinCompleteness,
		ProviderTimeout:  10 * time.Second,
		BatchConcurrency: 8,
		Breaker:          breaker.DefaultConfig(),
		Quarantine:       quarantine.DefaultConfig(),
		TTL:              svccache.DefaultTTLPolicy(),
	}
}

func (c GatewayConfig) Validate() error {
	var errs []error
	if c.MinCompleteness <= 0 || c.MinCompleteness > 1 {
		errs = append(errs, fmt.Errorf("min completeness must be in (0,1], got %v", c.MinCompleteness))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("provider timeout must be positive"))
	}
	if c.BatchConcurrency < 1 {
		errs = append(errs, errors.New("batch concurrency must be at least 1"))
	}
	if err := c.Breaker.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("breaker: %w", err))
	}
	if err := c.Quarantine.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("quarantine: %w", err))
	}
	if err := c.TTL.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ttl: %w", err))
	}
	return errors.Join(errs...)
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

func WithClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) { g.now = now }
}

func WithLogger(l *applogger.Logger) GatewayOption {
	return func(g *Gateway) { g.l = l }
}

func WithMetrics(m repository.Metrics) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// WithEventPublisher ships breaker transitions and quarantine changes.
func WithEventPublisher(p repository.EventPublisher) GatewayOption {
	return func(g *Gateway) { g.events = p }
}

func WithNormalizer(n *symbol.Normalizer) GatewayOption {
	return func(g *Gateway) { g.normalizer = n }
}

// Gateway is the single read path for quotes, OHLCV series and point-in-time
// prices. Data unavailability never surfaces as an error: it comes back as a
// degraded snapshot.
type Gateway struct {
	cfg              GatewayConfig
	chain            []repository.Adapter
	intradayApproved map[string]bool
	policy           domsvc.QualityPolicy

	normalizer *symbol.Normalizer
	breakers   *breaker.Set
	quarantine *quarantine.Manager
	cache      *svccache.SnapshotCache
	ownedStore pkgcache.Store

	now     func() time.Time
	l       *applogger.Logger
	metrics repository.Metrics
	events  repository.EventPublisher

	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewGateway wires the chain from adapters following cfg.ProviderOrder. A nil
// store gets a private in-memory cache.
func NewGateway(cfg GatewayConfig, adapters []repository.Adapter, store pkgcache.Store, opts ...GatewayOption) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("gateway config: %w", err)
	}
	chain, err := orderChain(adapters, cfg.ProviderOrder)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		cfg:              cfg,
		chain:            chain,
		intradayApproved: make(map[string]bool, len(cfg.IntradayApproved)),
		policy:           domsvc.NewQualityPolicy(cfg.MinCompleteness),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.l == nil {
		g.l = applogger.Nop()
	}
	if g.metrics == nil {
		g.metrics = nopMetrics{}
	}
	if g.normalizer == nil {
		g.normalizer = symbol.NewNormalizer(symbol.Config{})
	}
	for _, name := range cfg.IntradayApproved {
		g.intradayApproved[name] = true
	}
	if store == nil {
		store = pkgcache.NewMemoryCache(pkgcache.WithMemoryClock(g.now))
		g.ownedStore = store
	}

	names := make([]string, len(chain))
	for i, a := range chain {
		names[i] = a.Name()
	}
	g.breakers = breaker.NewSet(names, cfg.Breaker,
		breaker.WithClock(g.now),
		breaker.WithOnTransition(g.onBreakerTransition),
	)
	g.quarantine = quarantine.New(cfg.Quarantine,
		quarantine.WithClock(g.now),
		quarantine.WithOnQuarantine(g.onQuarantine),
		quarantine.WithOnRelease(g.onRelease),
	)
	g.cache = svccache.New(store, cfg.TTL, svccache.WithClock(g.now), svccache.WithLogger(g.l))

	for _, name := range names {
		g.metrics.RecordBreakerState(name, models.BreakerClosed)
	}
	g.l.Info("gateway initialized",
		applogger.Strings("providers", names),
		applogger.Strings("intraday_approved", cfg.IntradayApproved),
		applogger.Float64("min_completeness", g.policy.MinCompleteness),
	)
	return g, nil
}

func orderChain(adapters []repository.Adapter, order []string) ([]repository.Adapter, error) {
	byName := make(map[string]repository.Adapter, len(adapters))
	for _, a := range adapters {
		if a == nil {
			continue
		}
		if _, dup := byName[a.Name()]; dup {
			return nil, fmt.Errorf("duplicate provider %q", a.Name())
		}
		byName[a.Name()] = a
	}
	if len(order) == 0 {
		chain := make([]repository.Adapter, 0, len(byName))
		for _, a := range adapters {
			if a != nil {
				chain = append(chain, a)
			}
		}
		return chain, nil
	}

	chain := make([]repository.Adapter, 0, len(order))
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		a, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("provider order: unknown provider %q", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("provider order: %q listed twice", name)
		}
		seen[name] = true
		chain = append(chain, a)
	}
	return chain, nil
}

// NormalizeSymbol exposes the normalizer used on every lookup.
func (g *Gateway) NormalizeSymbol(raw string) models.NormalizedSymbol {
	return g.normalizer.Normalize(raw)
}

func (g *Gateway) IsDegraded(meta *models.SnapshotMeta) bool {
	return g.policy.IsDegraded(meta)
}

func (g *Gateway) LabelSkipReason(meta *models.SnapshotMeta) models.ReasonCode {
	return g.policy.LabelSkipReason(meta)
}

// Policy returns the quality policy snapshots are judged by.
func (g *Gateway) Policy() domsvc.QualityPolicy { return g.policy }

// GetQuote returns the latest quote for raw.
func (g *Gateway) GetQuote(ctx context.Context, raw string, failClosed bool) (*models.MarketDataSnapshot, error) {
	sym, err := g.canonical(raw, models.KindQuote)
	if err != nil {
		return nil, err
	}
	return g.lookup(ctx, &lookup{
		kind:    models.KindQuote,
		op:      "quote",
		symbol:  sym,
		key:     svccache.QuoteKey(sym),
		capable: func(c models.Capabilities) bool { return c.Quote },
		fetch: func(ctx context.Context, a repository.Adapter) (*models.RawResult, error) {
			return a.FetchQuote(ctx, sym)
		},
	}, failClosed)
}

// GetOHLCV returns bars for raw over r. An empty interval means daily.
func (g *Gateway) GetOHLCV(ctx context.Context, raw string, r models.Range, failClosed bool) (*models.MarketDataSnapshot, error) {
	sym, err := g.canonical(raw, models.KindOHLCV)
	if err != nil {
		return nil, err
	}
	if r.Interval == "" {
		r.Interval = models.IntervalDaily
	}
	switch {
	case !repository.IsValidInterval(r.Interval):
		return nil, fmt.Errorf("%w: unsupported interval %q", ErrInvalidRange, r.Interval)
	case !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start):
		return nil, fmt.Errorf("%w: end before start", ErrInvalidRange)
	case r.MinPoints < 0:
		return nil, fmt.Errorf("%w: negative min points", ErrInvalidRange)
	}
	return g.lookup(ctx, &lookup{
		kind:     models.KindOHLCV,
		op:       "ohlcv",
		symbol:   sym,
		key:      svccache.OHLCVKey(sym, r),
		intraday: r.IsIntraday(),
		capable:  func(c models.Capabilities) bool { return c.OHLCV },
		fetch: func(ctx context.Context, a repository.Adapter) (*models.RawResult, error) {
			return a.FetchOHLCV(ctx, sym, r)
		},
	}, failClosed)
}

// GetPriceAt returns the close nearest to ts within tolerance.
func (g *Gateway) GetPriceAt(ctx context.Context, raw string, ts time.Time, tolerance time.Duration, failClosed bool) (*models.MarketDataSnapshot, error) {
	sym, err := g.canonical(raw, models.KindPriceAt)
	if err != nil {
		return nil, err
	}
	if ts.IsZero() {
		return nil, fmt.Errorf("%w: missing timestamp", ErrInvalidRange)
	}
	if tolerance < 0 {
		return nil, fmt.Errorf("%w: negative tolerance", ErrInvalidRange)
	}
	return g.lookup(ctx, &lookup{
		kind:    models.KindPriceAt,
		op:      "price_at",
		symbol:  sym,
		key:     svccache.PriceAtKey(sym, ts, tolerance, g.now()),
		capable: func(c models.Capabilities) bool { return c.PriceAt },
		fetch: func(ctx context.Context, a repository.Adapter) (*models.RawResult, error) {
			return a.FetchPriceAt(ctx, sym, ts, tolerance)
		},
	}, failClosed)
}

// GetQuotesBatch looks up quotes with at most concurrency lookups in flight.
// Invalid symbols are skipped; results are keyed by canonical symbol.
func (g *Gateway) GetQuotesBatch(ctx context.Context, symbols []string, failClosed bool, concurrency int) (map[string]*models.MarketDataSnapshot, error) {
	if concurrency <= 0 {
		concurrency = g.cfg.BatchConcurrency
	}
	concurrency = min(concurrency, MaxBatchConcurrency)
	var mu sync.Mutex
	out := make(map[string]*models.MarketDataSnapshot, len(symbols))
	seen := make(map[string]bool, len(symbols))

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for _, raw := range symbols {
		ns := g.normalizer.Normalize(raw)
		if !ns.Valid {
			g.l.Debug("batch: skipping invalid symbol", applogger.String("raw", raw), applogger.Strings("warnings", ns.Warnings))
			continue
		}
		if seen[ns.Canonical] {
			continue
		}
		seen[ns.Canonical] = true
		sym := ns.Canonical
		eg.Go(func() error {
			snap, err := g.GetQuote(ectx, sym, failClosed)
			if err != nil {
				return err
			}
			mu.Lock()
			out[sym] = snap
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ProviderHealth returns the breaker view of every configured provider.
func (g *Gateway) ProviderHealth() map[string]models.ProviderHealth {
	return g.breakers.Health()
}

// ProviderStates returns full breaker state copies in chain order.
func (g *Gateway) ProviderStates() []models.ProviderState {
	names := g.breakers.Names()
	out := make([]models.ProviderState, 0, len(names))
	for _, name := range names {
		out = append(out, g.breakers.Get(name).State())
	}
	return out
}

func (g *Gateway) CacheStats() models.CacheStats { return g.cache.Stats() }

func (g *Gateway) Quarantined() []models.QuarantineRecord { return g.quarantine.List() }

// ReleaseQuarantine lifts a quarantine early. It reports whether one was active.
func (g *Gateway) ReleaseQuarantine(raw string) (bool, error) {
	ns := g.normalizer.Normalize(raw)
	if !ns.Valid {
		return false, fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}
	return g.quarantine.Release(ns.Canonical), nil
}

// Close waits for pending event publications and releases owned resources.
func (g *Gateway) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return nil
	}
	g.wg.Wait()
	if g.ownedStore != nil {
		return g.ownedStore.Close()
	}
	return nil
}

func (g *Gateway) canonical(raw string, kind models.Kind) (string, error) {
	ns := g.normalizer.Normalize(raw)
	if !ns.Valid {
		g.metrics.RecordLookup(kind, outcomeInvalid)
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}
	return ns.Canonical, nil
}
