package repository

import (
	"context"
	"time"

	"MarketGate/internal/domain/models"
)

// Adapter is the uniform capability surface of one external price source.
// Every error returned must be a *provider.Error carrying a taxonomy kind.
//
//go:generate mockgen -package=usecase_test -destination=../../usecase/mock_adapter_test.go -source=interfaces.go Adapter
type Adapter interface {
	Name() string
	Capabilities() models.Capabilities
	FetchQuote(ctx context.Context, symbol string) (*models.RawResult, error)
	FetchOHLCV(ctx context.Context, symbol string, r models.Range) (*models.RawResult, error)
	FetchPriceAt(ctx context.Context, symbol string, ts time.Time, tolerance time.Duration) (*models.RawResult, error)
}

// EventPublisher ships gateway events to external observers.
type EventPublisher interface {
	Publish(ctx context.Context, ev models.GatewayEvent) error
	Close() error
}

type Metrics interface {
	RecordLookup(kind models.Kind, outcome string)
	RecordProviderCall(provider, outcome string, seconds float64)
	RecordBreakerState(provider string, state models.BreakerState)
	RecordCache(kind models.Kind, hit bool)
	RecordQuarantined(n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
