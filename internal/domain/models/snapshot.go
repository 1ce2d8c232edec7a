package models

import "time"

// Kind is the type of market data a snapshot carries.
type Kind string

const (
	KindQuote   Kind = "quote"
	KindOHLCV   Kind = "ohlcv"
	KindPriceAt Kind = "price_at"
)

// IntervalDaily is the only resolution served without the intraday policy gate.
const IntervalDaily = "1d"

// Quote is the latest traded price of a symbol.
type Quote struct {
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previous_close,omitempty"`
	ChangePct1D   float64   `json:"change_pct_1d,omitempty"`
	Volume        float64   `json:"volume,omitempty"`
	AsOf          time.Time `json:"as_of"`
}

// Candle represents one OHLCV bar.
type Candle struct {
	Bucket time.Time `json:"bucket"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// OHLCVSeries is an ordered (oldest first) series of candles.
type OHLCVSeries struct {
	Interval string   `json:"interval"`
	Candles  []Candle `json:"candles"`
}

// PricePoint is the close nearest to a requested timestamp.
type PricePoint struct {
	Price     float64   `json:"price"`
	At        time.Time `json:"at"`
	Requested time.Time `json:"requested"`
}

// Range selects an OHLCV window.
type Range struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Interval  string    `json:"interval"`
	MinPoints int       `json:"min_points"`
}

// IsIntraday reports whether the range asks for sub-daily bars.
func (r Range) IsIntraday() bool {
	return r.Interval != "" && r.Interval != IntervalDaily
}

// Payload holds exactly one of the typed results, matching the snapshot Kind.
type Payload struct {
	Quote   *Quote       `json:"quote,omitempty"`
	OHLCV   *OHLCVSeries `json:"ohlcv,omitempty"`
	PriceAt *PricePoint  `json:"price_at,omitempty"`
}

// SnapshotMeta is the provenance and quality metadata of a snapshot.
// ProviderUsed is nil exactly when every attempted provider failed.
type SnapshotMeta struct {
	ProviderUsed     *string       `json:"provider_used"`
	FallbackChain    []string      `json:"fallback_chain"`
	QualityFlags     []QualityFlag `json:"quality_flags"`
	DataCompleteness float64       `json:"data_completeness"`
	CacheHit         bool          `json:"cache_hit"`
	FetchedAt        time.Time     `json:"fetched_at"`
}

// MarketDataSnapshot is the unit returned to every caller of the gateway.
type MarketDataSnapshot struct {
	Symbol  string       `json:"symbol"`
	Kind    Kind         `json:"kind"`
	Payload *Payload     `json:"payload,omitempty"`
	Meta    SnapshotMeta `json:"meta"`
}

// Provider returns the provider that served the snapshot, or "".
func (s *MarketDataSnapshot) Provider() string {
	if s == nil || s.Meta.ProviderUsed == nil {
		return ""
	}
	return *s.Meta.ProviderUsed
}

// RawResult is what an adapter hands back to the orchestrator.
type RawResult struct {
	Payload      Payload
	Completeness float64
	Flags        []QualityFlag
}

// Capabilities advertises what an adapter can technically serve.
type Capabilities struct {
	Quote    bool `json:"quote"`
	OHLCV    bool `json:"ohlcv"`
	PriceAt  bool `json:"price_at"`
	Intraday bool `json:"intraday"`
}
