package usecase

import (
	"context"
	"errors"
	"time"

	"MarketGate/internal/domain/models"
	"MarketGate/internal/domain/repository"
	"MarketGate/internal/service/breaker"
	svccache "MarketGate/internal/service/cache"
	"MarketGate/internal/service/provider"
	applogger "MarketGate/pkg/logger"
)

type fetchFunc func(ctx context.Context, a repository.Adapter) (*models.RawResult, error)

// lookup is one normalized request travelling through the chain.
type lookup struct {
	kind     models.Kind
	op       string
	symbol   string
	key      svccache.Key
	intraday bool
	capable  func(models.Capabilities) bool
	fetch    fetchFunc
}

func (g *Gateway) lookup(ctx context.Context, lk *lookup, failClosed bool) (*models.MarketDataSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		g.metrics.RecordLatency("lookup_"+string(lk.kind), time.Since(start).Seconds())
	}()

	if rec, ok := g.quarantine.Check(lk.symbol); ok {
		g.l.Debug("lookup blocked by quarantine",
			applogger.String("symbol", lk.symbol),
			applogger.Time("until", rec.QuarantinedUntil),
		)
		g.metrics.RecordLookup(lk.kind, outcomeQuarantined)
		return g.finalize(g.blocked(lk, models.FlagSymbolQuarantined), failClosed), nil
	}

	chain := g.eligible(lk)
	if lk.intraday && len(chain) == 0 {
		g.metrics.RecordLookup(lk.kind, outcomeIntradayDisabled)
		return g.finalize(g.blocked(lk, models.FlagIntradayDisabled), failClosed), nil
	}

	if snap, ok := g.cache.Get(ctx, lk.key); ok {
		g.metrics.RecordCache(lk.kind, true)
		g.metrics.RecordLookup(lk.kind, outcomeHit)
		return g.finalize(snap, failClosed), nil
	}
	g.metrics.RecordCache(lk.kind, false)

	// The walk outlives any single caller so that followers still get a result.
	detached := context.WithoutCancel(ctx)
	snap, shared, err := g.cache.Do(ctx, lk.key, func() (*models.MarketDataSnapshot, error) {
		if snap, ok := g.cache.Peek(detached, lk.key); ok {
			return snap, nil
		}
		return g.walk(detached, lk, chain), nil
	})
	if err != nil {
		return nil, err
	}

	outcome := outcomeOK
	if snap.Meta.ProviderUsed == nil {
		outcome = outcomeDegraded
	}
	g.metrics.RecordLookup(lk.kind, outcome)
	g.l.Debug("lookup finished",
		applogger.String("symbol", lk.symbol),
		applogger.String("kind", string(lk.kind)),
		applogger.String("provider", snap.Provider()),
		applogger.Strings("fallback_chain", snap.Meta.FallbackChain),
		applogger.Bool("shared", shared),
	)
	return g.finalize(snap, failClosed), nil
}

// eligible filters the chain down to providers able to serve lk. Intraday
// requests additionally need policy approval.
func (g *Gateway) eligible(lk *lookup) []repository.Adapter {
	out := make([]repository.Adapter, 0, len(g.chain))
	for _, a := range g.chain {
		caps := a.Capabilities()
		if !lk.capable(caps) {
			continue
		}
		if lk.intraday && (!caps.Intraday || !g.intradayApproved[a.Name()]) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// walk tries each provider in order until one returns an acceptable result.
func (g *Gateway) walk(ctx context.Context, lk *lookup, chain []repository.Adapter) *models.MarketDataSnapshot {
	attempted := make([]string, 0, len(chain))
	var flags models.FlagSet
	var best *models.RawResult

	for _, a := range chain {
		name := a.Name()
		br := g.breakers.Get(name)
		if !br.Allow() {
			g.l.Debug("provider skipped, breaker open",
				applogger.String("provider", name),
				applogger.String("symbol", lk.symbol),
			)
			g.metrics.RecordProviderCall(name, "skipped", 0)
			continue
		}

		started := time.Now()
		res, err := g.call(ctx, a, lk)
		elapsed := time.Since(started)
		// A local throttle never reached the upstream: skip without touching
		// breaker or quarantine.
		if provider.IsThrottled(err) {
			br.Release()
			flags.Add(models.FlagRateLimited)
			g.metrics.RecordProviderCall(name, "throttled", 0)
			g.l.Debug("provider skipped, local rate limit",
				applogger.String("provider", name),
				applogger.String("symbol", lk.symbol),
			)
			continue
		}
		attempted = append(attempted, name)
		if err != nil {
			kind := provider.KindOf(err)
			flags.Add(kind.Flag())
			g.record(br, kind, err)
			g.metrics.RecordProviderCall(name, string(kind), elapsed.Seconds())
			g.l.Warn("provider call failed",
				applogger.String("provider", name),
				applogger.String("symbol", lk.symbol),
				applogger.String("op", lk.op),
				applogger.String("error_kind", string(kind)),
				applogger.Duration("elapsed", elapsed),
				applogger.Error(err),
			)
			continue
		}

		br.RecordSuccess()
		if res.Completeness >= g.policy.MinCompleteness {
			g.metrics.RecordProviderCall(name, "ok", elapsed.Seconds())
			return g.accept(ctx, lk, name, res, attempted)
		}
		g.metrics.RecordProviderCall(name, "partial", elapsed.Seconds())
		flags.Add(res.Flags...)
		if best == nil || res.Completeness > best.Completeness {
			best = res
		}
	}
	return g.exhausted(lk, attempted, &flags, best)
}

func (g *Gateway) record(br *breaker.Breaker, kind provider.ErrorKind, err error) {
	if kind.CountsAsFailure() {
		br.RecordFailure(err)
		return
	}
	br.RecordNeutral(err)
}

type callResult struct {
	res *models.RawResult
	err error
}

// call runs one adapter under the provider timeout. A result arriving after
// the deadline is dropped.
func (g *Gateway) call(ctx context.Context, a repository.Adapter, lk *lookup) (*models.RawResult, error) {
	cctx, cancel := context.WithTimeout(ctx, g.cfg.ProviderTimeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: provider.Errorf(provider.Unknown, a.Name(), lk.op, "panic: %v", r)}
			}
		}()
		res, err := lk.fetch(cctx, a)
		done <- callResult{res: res, err: err}
	}()

	select {
	case out := <-done:
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, provider.NewError(provider.Timeout, a.Name(), lk.op, cctx.Err())
		}
		if out.err != nil {
			return nil, provider.Classify(a.Name(), lk.op, out.err)
		}
		if out.res == nil {
			return nil, provider.Errorf(provider.Malformed, a.Name(), lk.op, "empty result")
		}
		return out.res, nil
	case <-cctx.Done():
		return nil, provider.NewError(provider.Timeout, a.Name(), lk.op, cctx.Err())
	}
}

func (g *Gateway) accept(ctx context.Context, lk *lookup, name string, res *models.RawResult, attempted []string) *models.MarketDataSnapshot {
	var flags models.FlagSet
	flags.Add(res.Flags...)
	payload := res.Payload
	used := name
	snap := &models.MarketDataSnapshot{
		Symbol:  lk.symbol,
		Kind:    lk.kind,
		Payload: &payload,
		Meta: models.SnapshotMeta{
			ProviderUsed:     &used,
			FallbackChain:    attempted,
			QualityFlags:     flags.Slice(),
			DataCompleteness: res.Completeness,
			FetchedAt:        g.now(),
		},
	}
	g.cache.Put(ctx, lk.key, snap)
	g.quarantine.RecordSuccess(lk.symbol)
	return snap
}

// exhausted builds the degraded snapshot returned when no provider produced an
// acceptable result. The best partial payload is kept.
func (g *Gateway) exhausted(lk *lookup, attempted []string, flags *models.FlagSet, best *models.RawResult) *models.MarketDataSnapshot {
	if len(attempted) == 0 {
		flags.Add(models.FlagProviderError)
	}
	flags.Add(models.FlagNoData)

	snap := &models.MarketDataSnapshot{
		Symbol: lk.symbol,
		Kind:   lk.kind,
		Meta: models.SnapshotMeta{
			FallbackChain: attempted,
			QualityFlags:  flags.Slice(),
			FetchedAt:     g.now(),
		},
	}
	if best != nil {
		payload := best.Payload
		snap.Payload = &payload
		snap.Meta.DataCompleteness = best.Completeness
	}

	if len(attempted) > 0 {
		reason := string(g.policy.LabelSkipReason(&snap.Meta))
		g.quarantine.RecordFailure(lk.symbol, reason)
	}
	g.l.Warn("all providers exhausted",
		applogger.String("symbol", lk.symbol),
		applogger.String("kind", string(lk.kind)),
		applogger.Strings("fallback_chain", attempted),
		applogger.Any("flags", snap.Meta.QualityFlags),
	)
	return snap
}

// blocked is a snapshot refused before any provider was considered.
func (g *Gateway) blocked(lk *lookup, flag models.QualityFlag) *models.MarketDataSnapshot {
	return &models.MarketDataSnapshot{
		Symbol: lk.symbol,
		Kind:   lk.kind,
		Meta: models.SnapshotMeta{
			FallbackChain: []string{},
			QualityFlags:  []models.QualityFlag{flag},
			FetchedAt:     g.now(),
		},
	}
}

func (g *Gateway) finalize(snap *models.MarketDataSnapshot, failClosed bool) *models.MarketDataSnapshot {
	if failClosed && g.policy.IsDegraded(&snap.Meta) {
		snap.Payload = nil
	}
	return snap
}
