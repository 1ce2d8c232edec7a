package di

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketGate/internal/repository"
	"MarketGate/internal/service/provider"
	"MarketGate/internal/usecase"
	"MarketGate/pkg/config"
	applogger "MarketGate/pkg/logger"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	return cfg
}

func TestProvideGatewayConfig_Valid(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Gateway.Breaker.FailureThreshold = 2
	cfg.Gateway.Quarantine.Cooldown = time.Hour

	g := ProvideGatewayConfig(cfg)
	require.NoError(t, g.Validate())
	assert.Equal(t, []string{"finnhub", "stooq", "yahoo"}, g.ProviderOrder)
	assert.Equal(t, 2, g.Breaker.FailureThreshold)
	assert.Equal(t, time.Hour, g.Quarantine.Cooldown)
	assert.Positive(t, g.Quarantine.Shards)
	assert.Equal(t, 5*time.Minute, g.TTL.QuoteTTL)
}

func TestProvideAdapters(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Providers.Yahoo.Limit.Capacity = 0

	adapters, err := ProvideAdapters(cfg, nil, applogger.Nop())
	require.NoError(t, err)
	require.Len(t, adapters, 3)

	names := make([]string, len(adapters))
	for i, a := range adapters {
		names[i] = a.Name()
	}
	assert.Equal(t, []string{"finnhub", "stooq", "yahoo"}, names)
	assert.IsType(t, &provider.Limited{}, adapters[0])
	_, limited := adapters[2].(*provider.Limited)
	assert.False(t, limited)

	gw, err := usecase.NewGateway(ProvideGatewayConfig(cfg), adapters, nil)
	require.NoError(t, err)
	assert.NoError(t, gw.Close())
}

func TestProvideAdapters_HistoryNeedsClickHouse(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Gateway.ProviderOrder = []string{"history"}

	_, err := ProvideAdapters(cfg, nil, applogger.Nop())
	assert.ErrorContains(t, err, "clickhouse")
}

func TestProvideNormalizer_MergesAliases(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Symbols.Aliases = map[string]string{"GOOG": "GOOGL"}
	cfg.Symbols.Banned = []string{"ZZZZ"}

	n := ProvideNormalizer(cfg)
	assert.Equal(t, "GOOGL", n.Normalize("goog").Canonical)
	assert.Equal(t, "META", n.Normalize("FB").Canonical)
	assert.False(t, n.Normalize("ZZZZ").Valid)
}

func TestProvideEventPublisher_DisabledKafka(t *testing.T) {
	cfg := defaultConfig(t)
	producer, err := ProvideKafkaProducer(cfg)
	require.NoError(t, err)
	assert.Nil(t, producer)
	assert.IsType(t, repository.NopEventPublisher{}, ProvideEventPublisher(producer, cfg))
}

func TestProvideCacheStore_MemoryOnly(t *testing.T) {
	store, err := ProvideCacheStore(defaultConfig(t), applogger.Nop())
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}
