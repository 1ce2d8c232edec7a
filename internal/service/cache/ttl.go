package cache

import (
	"errors"
	"time"

	"MarketGate/internal/domain/models"
)

// TTLPolicy decides how long an accepted snapshot stays fresh.
type TTLPolicy struct {
	QuoteTTL       time.Duration
	OHLCVMaxTTL    time.Duration
	HistoricalTTL  time.Duration
	MinTTL         time.Duration
	RefreshHourUTC int
}

func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		QuoteTTL:       5 * time.Minute,
		OHLCVMaxTTL:    30 * time.Minute,
		HistoricalTTL:  24 * time.Hour,
		MinTTL:         time.Minute,
		RefreshHourUTC: 22,
	}
}

func (p TTLPolicy) Validate() error {
	var errs []error
	if p.QuoteTTL <= 0 {
		errs = append(errs, errors.New("quote ttl must be positive"))
	}
	if p.MinTTL <= 0 || p.OHLCVMaxTTL < p.MinTTL {
		errs = append(errs, errors.New("ohlcv ttl bounds invalid"))
	}
	if p.HistoricalTTL <= 0 {
		errs = append(errs, errors.New("historical ttl must be positive"))
	}
	if p.RefreshHourUTC < 0 || p.RefreshHourUTC > 23 {
		errs = append(errs, errors.New("refresh hour must be in 0..23"))
	}
	return errors.Join(errs...)
}

// TTL returns the lifetime of a snapshot stored under k at now.
func (p TTLPolicy) TTL(k Key, now time.Time) time.Duration {
	switch {
	case k.Kind == models.KindQuote, k.Intraday:
		return p.QuoteTTL
	case k.Kind == models.KindPriceAt && k.Historical:
		return p.HistoricalTTL
	}
	ttl := p.NextRefresh(now).Sub(now)
	if ttl < p.MinTTL {
		ttl = p.MinTTL
	}
	if ttl > p.OHLCVMaxTTL {
		ttl = p.OHLCVMaxTTL
	}
	return ttl
}

// NextRefresh is the next weekday RefreshHourUTC strictly after now.
func (p TTLPolicy) NextRefresh(now time.Time) time.Time {
	now = now.UTC()
	b := time.Date(now.Year(), now.Month(), now.Day(), p.RefreshHourUTC, 0, 0, 0, time.UTC)
	if !b.After(now) {
		b = b.AddDate(0, 0, 1)
	}
	for b.Weekday() == time.Saturday || b.Weekday() == time.Sunday {
		b = b.AddDate(0, 0, 1)
	}
	return b
}
