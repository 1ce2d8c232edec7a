package history

import (
	"context"
	"time"

	"MarketGate/internal/domain/models"
	drepo "MarketGate/internal/domain/repository"
	"MarketGate/internal/service/provider"
)

const Name = "history"

// Adapter serves daily bars from the persisted price history table.
// It has no live prices, so quotes are always NotFound.
type Adapter struct {
	store drepo.PriceHistory
	now   func() time.Time
}

func New(store drepo.PriceHistory) *Adapter {
	return &Adapter{store: store, now: time.Now}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Capabilities() models.Capabilities {
	return models.Capabilities{OHLCV: true, PriceAt: true}
}

func (a *Adapter) FetchQuote(_ context.Context, symbol string) (*models.RawResult, error) {
	return nil, provider.Errorf(provider.NotFound, Name, "quote", "no live quotes for %s", symbol)
}

func (a *Adapter) FetchOHLCV(ctx context.Context, symbol string, r models.Range) (*models.RawResult, error) {
	const op = "ohlcv"
	if r.IsIntraday() {
		return nil, provider.Errorf(provider.NotFound, Name, op, "interval %s not stored", r.Interval)
	}
	end := r.End
	if end.IsZero() {
		end = a.now()
	}
	candles, err := a.store.GetCandles(ctx, symbol, r.Start, end)
	if err != nil {
		return nil, provider.Classify(Name, op, err)
	}
	if len(candles) == 0 {
		return nil, provider.Errorf(provider.NotFound, Name, op, "no rows for %s", symbol)
	}
	return provider.SeriesResult(candles, r), nil
}

func (a *Adapter) FetchPriceAt(ctx context.Context, symbol string, ts time.Time, tolerance time.Duration) (*models.RawResult, error) {
	const op = "price_at"
	from, to := provider.PriceAtWindow(ts, tolerance)
	candles, err := a.store.GetCandles(ctx, symbol, from, to)
	if err != nil {
		return nil, provider.Classify(Name, op, err)
	}
	res, ok := provider.NearestClose(candles, ts, tolerance)
	if !ok {
		return nil, provider.Errorf(provider.NotFound, Name, op, "no rows around %s", ts.Format(time.DateOnly))
	}
	return res, nil
}

var _ drepo.Adapter = (*Adapter)(nil)
