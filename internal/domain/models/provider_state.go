package models

import "time"

// BreakerState is the circuit breaker state of one provider.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// Gauge maps a state to the value exported in metrics.
func (s BreakerState) Gauge() float64 {
	switch s {
	case BreakerOpen:
		return 2
	case BreakerHalfOpen:
		return 1
	default:
		return 0
	}
}

// ProviderState is a point-in-time copy of a provider's breaker.
type ProviderState struct {
	Name                string       `json:"name"`
	State               BreakerState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	FailureWindowStart  time.Time    `json:"failure_window_start"`
	OpenUntil           time.Time    `json:"open_until"`
	BackoffMultiplier   float64      `json:"backoff_multiplier"`
	LastError           string       `json:"last_error,omitempty"`
	LastErrorAt         time.Time    `json:"last_error_at"`
}

// ProviderHealth is the observability view of a ProviderState.
type ProviderHealth struct {
	State        BreakerState `json:"state"`
	OpenUntil    *time.Time   `json:"open_until,omitempty"`
	FailureCount int          `json:"failure_count"`
	LastError    string       `json:"last_error,omitempty"`
	LastErrorAt  *time.Time   `json:"last_error_at,omitempty"`
}

// Available reports whether the provider would be offered a call at now. An
// open breaker past its OpenUntil is available: the next lookup gets a trial.
func (h ProviderHealth) Available(now time.Time) bool {
	if h.State != BreakerOpen {
		return true
	}
	return h.OpenUntil != nil && !now.Before(*h.OpenUntil)
}

// QuarantineRecord tracks full-chain failures for one canonical symbol.
type QuarantineRecord struct {
	Symbol                string    `json:"symbol"`
	QuarantinedUntil      time.Time `json:"quarantined_until"`
	Reason                string    `json:"reason,omitempty"`
	FullChainFailureCount int       `json:"full_chain_failure_count"`
}

// CacheStats summarises snapshot cache effectiveness.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Entries int     `json:"entries"`
}

// HealthReport is the read-only diagnostics view of the gateway.
type HealthReport struct {
	Timestamp   time.Time                 `json:"timestamp"`
	Providers   map[string]ProviderHealth `json:"providers"`
	Cache       CacheStats                `json:"cache"`
	Quarantined []QuarantineRecord        `json:"quarantined"`
}
