package usecase

import (
	"context"

	"MarketGate/internal/domain/models"
	"MarketGate/internal/service/breaker"
	applogger "MarketGate/pkg/logger"
)

func (g *Gateway) onBreakerTransition(tr breaker.Transition) {
	fields := []applogger.Field{
		applogger.String("provider", tr.Provider),
		applogger.String("from", string(tr.From)),
		applogger.String("to", string(tr.To)),
		applogger.String("reason", tr.Reason),
	}
	if tr.To == models.BreakerOpen {
		fields = append(fields, applogger.Time("open_until", tr.OpenUntil))
	}
	g.l.Warn("breaker state changed", fields...)
	g.metrics.RecordBreakerState(tr.Provider, tr.To)
	g.publish(models.GatewayEvent{
		Type:     models.EventBreakerTransition,
		Provider: tr.Provider,
		From:     tr.From,
		To:       tr.To,
		Reason:   tr.Reason,
		Until:    tr.OpenUntil,
		At:       tr.At,
	})
}

func (g *Gateway) onQuarantine(rec models.QuarantineRecord) {
	g.l.Warn("symbol quarantined",
		applogger.String("symbol", rec.Symbol),
		applogger.Int("failures", rec.FullChainFailureCount),
		applogger.String("reason", rec.Reason),
		applogger.Time("until", rec.QuarantinedUntil),
	)
	g.metrics.RecordQuarantined(len(g.quarantine.List()))
	g.publish(models.GatewayEvent{
		Type:   models.EventSymbolQuarantined,
		Symbol: rec.Symbol,
		Reason: rec.Reason,
		Until:  rec.QuarantinedUntil,
		At:     g.now(),
	})
}

func (g *Gateway) onRelease(rec models.QuarantineRecord) {
	g.l.Info("symbol released from quarantine", applogger.String("symbol", rec.Symbol))
	g.metrics.RecordQuarantined(len(g.quarantine.List()))
	g.publish(models.GatewayEvent{
		Type:   models.EventSymbolReleased,
		Symbol: rec.Symbol,
		At:     g.now(),
	})
}

// publish ships ev in the background; Close waits for in-flight sends.
func (g *Gateway) publish(ev models.GatewayEvent) {
	if g.events == nil || g.closed.Load() {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := g.events.Publish(ctx, ev); err != nil {
			g.metrics.RecordError("event_publish")
			g.l.Warn("event publish failed",
				applogger.String("type", string(ev.Type)),
				applogger.String("key", ev.Key()),
				applogger.Error(err),
			)
		}
	}()
}

type nopMetrics struct{}

func (nopMetrics) RecordLookup(models.Kind, string) {}
func (nopMetrics) RecordProviderCall(string, string, float64) {}
func (nopMetrics) RecordBreakerState(string, models.BreakerState) {}
func (nopMetrics) RecordCache(models.Kind, bool) {}
func (nopMetrics) RecordQuarantined(int) {}
func (nopMetrics) RecordError(string) {}
func (nopMetrics) RecordLatency(string, float64) {}
