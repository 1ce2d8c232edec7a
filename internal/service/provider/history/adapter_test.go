package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketGate/internal/domain/models"
	"MarketGate/internal/service/provider"
)

type fakeStore struct {
	candles []models.Candle
	err     error
	from    time.Time
	to      time.Time
}

func (f *fakeStore) GetCandles(_ context.Context, _ string, from, to time.Time) ([]models.Candle, error) {
	f.from, f.to = from, to
	var out []models.Candle
	for _, c := range f.candles {
		if !c.Bucket.Before(from) && !c.Bucket.After(to) {
			out = append(out, c)
		}
	}
	return out, f.err
}

func (f *fakeStore) GetLatestCandle(context.Context, string) (*models.Candle, error) {
	if len(f.candles) == 0 {
		return nil, f.err
	}
	return &f.candles[len(f.candles)-1], f.err
}

func day(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

func TestFetchQuote_NotFound(t *testing.T) {
	_, err := New(&fakeStore{}).FetchQuote(context.Background(), "AAPL")
	assert.Equal(t, provider.NotFound, provider.KindOf(err))
}

func TestFetchOHLCV(t *testing.T) {
	store := &fakeStore{candles: []models.Candle{{Bucket: day(4), Close: 1}, {Bucket: day(5), Close: 2}, {Bucket: day(6), Close: 3}}}
	a := New(store)

	res, err := a.FetchOHLCV(context.Background(), "AAPL", models.Range{Start: day(4), End: day(5), Interval: "1d", MinPoints: 1})
	require.NoError(t, err)
	assert.Len(t, res.Payload.OHLCV.Candles, 2)
	assert.Equal(t, day(4), store.from)

	_, err = a.FetchOHLCV(context.Background(), "AAPL", models.Range{Start: day(4), End: day(5), Interval: "5m"})
	assert.Equal(t, provider.NotFound, provider.KindOf(err))

	_, err = a.FetchOHLCV(context.Background(), "AAPL", models.Range{Start: day(20), End: day(21), Interval: "1d"})
	assert.Equal(t, provider.NotFound, provider.KindOf(err))
}

func TestStoreErrorIsUnknown(t *testing.T) {
	a := New(&fakeStore{err: errors.New("connection refused")})
	_, err := a.FetchPriceAt(context.Background(), "AAPL", day(5), 24*time.Hour)
	assert.Equal(t, provider.Unknown, provider.KindOf(err))
}

func TestFetchPriceAt_Window(t *testing.T) {
	store := &fakeStore{candles: []models.Candle{{Bucket: day(1), Close: 10}, {Bucket: day(4), Close: 40}}}
	a := New(store)

	ts := day(5)
	res, err := a.FetchPriceAt(context.Background(), "AAPL", ts, 2*24*time.Hour)
	require.NoError(t, err)
	assert.InDelta(t, 40, res.Payload.PriceAt.Price, 1e-9)
	assert.Equal(t, ts.Add(-5*24*time.Hour), store.from)
	assert.Equal(t, ts.Add(3*24*time.Hour), store.to)
}
