//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"MarketGate/pkg/config"
	"MarketGate/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideCacheStore,

		// Repositories
		ProvidePriceHistory,
		ProvideEventPublisher,

		// Providers and policy
		ProvideAdapters,
		ProvideNormalizer,
		ProvideGatewayConfig,

		// Use cases
		ProvideGateway,
		ProvideHealthReporter,
		ProvidePrefetchHandler,

		// Transport
		ProvideHTTPHandler,
		ProvideKafkaConsumer,

		ProvideApp,
	)
	return &server.App{}, nil
}
