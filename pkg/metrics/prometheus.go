package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"MarketGate/internal/domain/models"
)

const namespace = "marketgate"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	lookups       *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
	providerTime  *prometheus.HistogramVec
	breakerState  *prometheus.GaugeVec
	cache         *prometheus.CounterVec
	quarantined   prometheus.Gauge
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a recorder registered with the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		lookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookups_total",
				Help:      "Gateway lookups by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		providerCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Provider adapter calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		providerTime: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_call_duration_seconds",
				Help:      "Duration of provider adapter calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		breakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Circuit breaker state per provider (0 closed, 1 half_open, 2 open)",
			},
			[]string{"provider"},
		),
		cache: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Snapshot cache lookups by kind and result",
			},
			[]string{"kind", "result"},
		),
		quarantined: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "quarantined_symbols",
				Help:      "Number of symbols currently quarantined",
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordLookup(kind models.Kind, outcome string) {
	r.lookups.WithLabelValues(string(kind), outcome).Inc()
}

// RecordProviderCall counts one adapter call. Skipped calls are not timed.
func (r *Recorder) RecordProviderCall(provider, outcome string, seconds float64) {
	r.providerCalls.WithLabelValues(provider, outcome).Inc()
	if outcome != "skipped" {
		r.providerTime.WithLabelValues(provider).Observe(seconds)
	}
}

func (r *Recorder) RecordBreakerState(provider string, state models.BreakerState) {
	r.breakerState.WithLabelValues(provider).Set(state.Gauge())
}

func (r *Recorder) RecordCache(kind models.Kind, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cache.WithLabelValues(string(kind), result).Inc()
}

func (r *Recorder) RecordQuarantined(n int) {
	r.quarantined.Set(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
