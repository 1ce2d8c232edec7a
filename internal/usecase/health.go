package usecase

import (
	"time"

	"MarketGate/internal/domain/models"
)

// HealthReporter is the read-only diagnostics view over a Gateway.
type HealthReporter struct {
	g   *Gateway
	now func() time.Time
}

func NewHealthReporter(g *Gateway) *HealthReporter {
	return &HealthReporter{g: g, now: g.now}
}

// ProviderHealth returns per-provider breaker state.
func (h *HealthReporter) ProviderHealth() map[string]models.ProviderHealth {
	return h.g.ProviderHealth()
}

// Report adds cache effectiveness and active quarantines to provider health.
func (h *HealthReporter) Report() models.HealthReport {
	return models.HealthReport{
		Timestamp:   h.now().UTC(),
		Providers:   h.g.ProviderHealth(),
		Cache:       h.g.CacheStats(),
		Quarantined: h.g.Quarantined(),
	}
}

// Healthy reports whether at least one provider currently accepts calls.
func (h *HealthReporter) Healthy() bool {
	now := h.now()
	for _, ph := range h.g.ProviderHealth() {
		if ph.Available(now) {
			return true
		}
	}
	return false
}
