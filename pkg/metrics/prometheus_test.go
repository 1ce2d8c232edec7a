package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"MarketGate/internal/domain/models"
)

func TestRecorder(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordLookup(models.KindQuote, "ok")
	r.RecordLookup(models.KindQuote, "ok")
	r.RecordProviderCall("finnhub", "auth_failure", 0.2)
	r.RecordProviderCall("finnhub", "skipped", 0)
	r.RecordBreakerState("finnhub", models.BreakerOpen)
	r.RecordCache(models.KindOHLCV, true)
	r.RecordCache(models.KindOHLCV, false)
	r.RecordQuarantined(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.lookups.WithLabelValues("quote", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.providerCalls.WithLabelValues("finnhub", "skipped")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.providerTime))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.breakerState.WithLabelValues("finnhub")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cache.WithLabelValues("ohlcv", "hit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.quarantined))
}

func TestRecorder_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewWithRegisterer(prometheus.NewRegistry())
		NewWithRegisterer(prometheus.NewRegistry())
	})
}
