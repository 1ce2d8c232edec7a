package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// APIDegraded counts degraded snapshots served over HTTP by skip reason.
	APIDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketgate",
			Subsystem: "api",
			Name:      "degraded_total",
			Help:      "Degraded snapshots served by endpoint and reason",
		},
		[]string{"endpoint", "reason"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketgate",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by market data endpoint",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APIDegraded, APIErrors)
	})
}
