package provider

import (
	"sort"
	"time"

	"MarketGate/internal/domain/models"
)

const day = 24 * time.Hour

// SeriesResult wraps candles already filtered to r; completeness is rows/MinPoints.
func SeriesResult(candles []models.Candle, r models.Range) *models.RawResult {
	sort.Slice(candles, func(i, j int) bool { return candles[i].Bucket.Before(candles[j].Bucket) })
	interval := r.Interval
	if interval == "" {
		interval = models.IntervalDaily
	}
	res := &models.RawResult{
		Payload:      models.Payload{OHLCV: &models.OHLCVSeries{Interval: interval, Candles: candles}},
		Completeness: 1,
	}
	if r.MinPoints > 0 && len(candles) < r.MinPoints {
		res.Completeness = float64(len(candles)) / float64(r.MinPoints)
		res.Flags = append(res.Flags, models.FlagIncompleteWindow)
	}
	return res
}

// FilterRange keeps candles whose bucket falls inside [start, end]. Zero bounds are open.
func FilterRange(candles []models.Candle, start, end time.Time) []models.Candle {
	out := candles[:0:0]
	for _, c := range candles {
		if !start.IsZero() && c.Bucket.Before(start) {
			continue
		}
		if !end.IsZero() && c.Bucket.After(end) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// PriceAtWindow is the daily window fetched to resolve a point-in-time price.
func PriceAtWindow(ts time.Time, tolerance time.Duration) (time.Time, time.Time) {
	before := max(5*day, tolerance+day)
	after := max(3*day, tolerance+day)
	return ts.Add(-before), ts.Add(after)
}

// NearestClose picks the candle closest to ts. A match farther than tolerance
// is returned with zero completeness and INCOMPLETE_WINDOW, so it is never accepted.
func NearestClose(candles []models.Candle, ts time.Time, tolerance time.Duration) (*models.RawResult, bool) {
	if len(candles) == 0 {
		return nil, false
	}
	best := candles[0]
	bestDelta := absDuration(best.Bucket.Sub(ts))
	for _, c := range candles[1:] {
		if d := absDuration(c.Bucket.Sub(ts)); d < bestDelta {
			best, bestDelta = c, d
		}
	}
	res := &models.RawResult{
		Payload:      models.Payload{PriceAt: &models.PricePoint{Price: best.Close, At: best.Bucket, Requested: ts}},
		Completeness: 1,
	}
	if bestDelta > tolerance {
		res.Completeness = 0
		res.Flags = append(res.Flags, models.FlagIncompleteWindow)
	}
	return res, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
