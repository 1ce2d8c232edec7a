package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketGate/internal/domain/models"
)

func d(n int) time.Time { return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC) }

func TestSeriesResult(t *testing.T) {
	candles := []models.Candle{{Bucket: d(3)}, {Bucket: d(1)}, {Bucket: d(2)}}

	res := SeriesResult(candles, models.Range{MinPoints: 3})
	assert.InDelta(t, 1.0, res.Completeness, 1e-9)
	assert.Empty(t, res.Flags)
	assert.Equal(t, models.IntervalDaily, res.Payload.OHLCV.Interval)
	assert.Equal(t, d(1), res.Payload.OHLCV.Candles[0].Bucket)

	res = SeriesResult(candles[:1], models.Range{MinPoints: 4, Interval: "1h"})
	assert.InDelta(t, 0.25, res.Completeness, 1e-9)
	assert.Equal(t, []models.QualityFlag{models.FlagIncompleteWindow}, res.Flags)
}

func TestFilterRange(t *testing.T) {
	candles := []models.Candle{{Bucket: d(1)}, {Bucket: d(2)}, {Bucket: d(3)}}
	assert.Len(t, FilterRange(candles, d(2), d(3)), 2)
	assert.Len(t, FilterRange(candles, time.Time{}, d(1)), 1)
	assert.Len(t, FilterRange(candles, time.Time{}, time.Time{}), 3)
}

func TestPriceAtWindow(t *testing.T) {
	ts := d(10)
	from, to := PriceAtWindow(ts, 24*time.Hour)
	assert.Equal(t, ts.Add(-5*day), from)
	assert.Equal(t, ts.Add(3*day), to)

	from, to = PriceAtWindow(ts, 9*day)
	assert.Equal(t, ts.Add(-10*day), from)
	assert.Equal(t, ts.Add(10*day), to)
}

func TestNearestClose(t *testing.T) {
	candles := []models.Candle{{Bucket: d(1), Close: 1}, {Bucket: d(4), Close: 4}, {Bucket: d(8), Close: 8}}

	res, ok := NearestClose(candles, d(5), day)
	require.True(t, ok)
	assert.InDelta(t, 4, res.Payload.PriceAt.Price, 1e-9)
	assert.Equal(t, d(4), res.Payload.PriceAt.At)
	assert.InDelta(t, 1.0, res.Completeness, 1e-9)

	res, ok = NearestClose(candles, d(6), day)
	require.True(t, ok)
	assert.Zero(t, res.Completeness)
	assert.Contains(t, res.Flags, models.FlagIncompleteWindow)

	_, ok = NearestClose(nil, d(6), day)
	assert.False(t, ok)
}
