package cache

import (
	"fmt"
	"strconv"
	"time"

	"MarketGate/internal/domain/models"
	pkgcache "MarketGate/pkg/cache"
)

const keyPrefix = "md"

// historicalAge is how old a price_at timestamp must be before its answer is
// considered settled.
const historicalAge = 48 * time.Hour

// Key identifies one cached snapshot: (kind, canonical symbol, time bucket).
type Key struct {
	Kind       models.Kind
	Symbol     string
	Bucket     string
	Intraday   bool
	Historical bool
}

// String renders md:{kind}:{symbol}:{bucket}.
func (k Key) String() string {
	return pkgcache.GenerateKeyWithParams(keyPrefix, k.Kind, k.Symbol, k.Bucket)
}

func QuoteKey(symbol string) Key {
	return Key{Kind: models.KindQuote, Symbol: symbol, Bucket: "latest"}
}

func OHLCVKey(symbol string, r models.Range) Key {
	interval := r.Interval
	if interval == "" {
		interval = models.IntervalDaily
	}
	return Key{
		Kind:     models.KindOHLCV,
		Symbol:   symbol,
		Bucket:   fmt.Sprintf("%s/%s/%s/%d", interval, unix(r.Start), unix(r.End), r.MinPoints),
		Intraday: r.IsIntraday(),
	}
}

func PriceAtKey(symbol string, ts time.Time, tolerance time.Duration, now time.Time) Key {
	return Key{
		Kind:       models.KindPriceAt,
		Symbol:     symbol,
		Bucket:     fmt.Sprintf("%s/%d", unix(ts), int64(tolerance/time.Second)),
		Historical: now.Sub(ts) > historicalAge,
	}
}

func unix(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.Unix(), 10)
}
