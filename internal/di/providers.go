package di

import (
	"context"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"MarketGate/internal/domain/repository"
	"MarketGate/internal/handler/api"
	internalrepo "MarketGate/internal/repository"
	"MarketGate/internal/service/breaker"
	svccache "MarketGate/internal/service/cache"
	"MarketGate/internal/service/provider"
	"MarketGate/internal/service/provider/finnhub"
	"MarketGate/internal/service/provider/history"
	"MarketGate/internal/service/provider/stooq"
	"MarketGate/internal/service/provider/yahoo"
	"MarketGate/internal/service/quarantine"
	"MarketGate/internal/service/ratelimit"
	"MarketGate/internal/service/symbol"
	"MarketGate/internal/usecase"
	pkgcache "MarketGate/pkg/cache"
	pkgch "MarketGate/pkg/clickhouse"
	"MarketGate/pkg/config"
	xhttp "MarketGate/pkg/http"
	pkgkafka "MarketGate/pkg/kafka"
	applogger "MarketGate/pkg/logger"
	"MarketGate/pkg/metrics"
	"MarketGate/pkg/server"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient opens the read-only history connection. Nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithReadOnly(true),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecTime(cfg.ClickHouse.MaxExecTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvidePriceHistory exposes the history table. Nil when ClickHouse is disabled.
func ProvidePriceHistory(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (repository.PriceHistory, error) {
	if ch == nil {
		return nil, nil
	}
	store, err := internalrepo.NewCHPriceHistory(ch, cfg.Providers.History.Table, l)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// ProvideKafkaProducer creates the shared producer. Nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher publishes gateway events to Kafka, or drops them.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

// ProvideCacheStore builds the snapshot store: memory only, or memory in
// front of Redis so replicas share accepted snapshots.
func ProvideCacheStore(cfg *config.Config, l *applogger.Logger) (pkgcache.Store, error) {
	mem := pkgcache.NewMemoryCache(
		pkgcache.WithMemoryMaxSize(cfg.Redis.L1MaxSize),
		pkgcache.WithMemoryCleanup(cfg.Gateway.TTL.Min),
	)
	if !cfg.Redis.Enabled {
		return mem, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.OpTimeout*10),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
		pkgcache.WithRedisOpTimeout(cfg.Redis.OpTimeout),
	)
	if err != nil {
		_ = mem.Close()
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("snapshot cache layered over redis", applogger.String("addr", cfg.Redis.Addr))
	return pkgcache.NewLayeredCache(mem, rc, pkgcache.WithLayeredFillTTL(cfg.Gateway.TTL.Min)), nil
}

// ProvideAdapters builds every provider named in provider_order, each behind
// its own client-side rate limit.
func ProvideAdapters(cfg *config.Config, hist repository.PriceHistory, l *applogger.Logger) ([]repository.Adapter, error) {
	hc := xhttp.NewClient(
		xhttp.WithTimeout(cfg.Providers.HTTPTimeout),
		xhttp.WithHeader("User-Agent", cfg.Providers.UserAgent),
	)
	limiter := ratelimit.New()
	p := cfg.Providers

	adapters := make([]repository.Adapter, 0, len(cfg.Gateway.ProviderOrder))
	for _, name := range cfg.Gateway.ProviderOrder {
		var a repository.Adapter
		var lim config.Limit
		switch name {
		case finnhub.Name:
			if p.Finnhub.APIKey == "" {
				l.Warn("finnhub api key missing, calls will fail with AUTH_FAIL")
			}
			a, lim = finnhub.New(p.Finnhub.APIKey, p.Finnhub.BaseURL, hc), p.Finnhub.Limit
		case yahoo.Name:
			a, lim = yahoo.New(p.Yahoo.BaseURL, hc), p.Yahoo.Limit
		case stooq.Name:
			a, lim = stooq.New(p.Stooq.BaseURL, hc), p.Stooq.Limit
		case history.Name:
			if hist == nil {
				return nil, fmt.Errorf("provider %q needs clickhouse", name)
			}
			a = history.New(hist)
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		if lim.Capacity > 0 {
			a = provider.WithRateLimit(a, limiter, lim.Capacity, lim.RefillPerSec)
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

// ProvideNormalizer layers configured aliases and bans over the built-in tables.
func ProvideNormalizer(cfg *config.Config) *symbol.Normalizer {
	aliases := make(map[string]string, len(symbol.DefaultAliases)+len(cfg.Symbols.Aliases))
	for k, v := range symbol.DefaultAliases {
		aliases[k] = v
	}
	for k, v := range cfg.Symbols.Aliases {
		aliases[k] = v
	}
	banned := append(append([]string{}, symbol.DefaultBanned...), cfg.Symbols.Banned...)
	return symbol.NewNormalizer(symbol.Config{
		Aliases:   aliases,
		Banned:    banned,
		MaxLength: cfg.Symbols.MaxLength,
	})
}

// ProvideGatewayConfig maps the gateway section onto the usecase policy.
func ProvideGatewayConfig(cfg *config.Config) usecase.GatewayConfig {
	g := cfg.Gateway
	return usecase.GatewayConfig{
		ProviderOrder:    g.ProviderOrder,
		IntradayApproved: g.IntradayApproved,
		MinCompleteness:  g.MinCompleteness,
		ProviderTimeout:  g.ProviderTimeout,
		BatchConcurrency: g.BatchConcurrency,
		Breaker: breaker.Config{
			FailureThreshold: g.Breaker.FailureThreshold,
			FailureWindow:    g.Breaker.FailureWindow,
			BaseBackoff:      g.Breaker.BaseBackoff,
			BackoffFactor:    g.Breaker.BackoffFactor,
			MaxBackoff:       g.Breaker.MaxBackoff,
		},
		Quarantine: quarantine.Config{
			Threshold: g.Quarantine.Threshold,
			Cooldown:  g.Quarantine.Cooldown,
			Shards:    quarantine.DefaultConfig().Shards,
		},
		TTL: svccache.TTLPolicy{
			QuoteTTL:       g.TTL.Quote,
			OHLCVMaxTTL:    g.TTL.OHLCVMax,
			HistoricalTTL:  g.TTL.Historical,
			MinTTL:         g.TTL.Min,
			RefreshHourUTC: g.TTL.RefreshHourUTC,
		},
	}
}

// ProvideGateway assembles the orchestrator.
func ProvideGateway(
	gcfg usecase.GatewayConfig,
	adapters []repository.Adapter,
	store pkgcache.Store,
	norm *symbol.Normalizer,
	events repository.EventPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) (*usecase.Gateway, error) {
	return usecase.NewGateway(gcfg, adapters, store,
		usecase.WithLogger(l.With(applogger.String("component", "gateway"))),
		usecase.WithMetrics(m),
		usecase.WithEventPublisher(events),
		usecase.WithNormalizer(norm),
	)
}

func ProvideHealthReporter(gw *usecase.Gateway) *usecase.HealthReporter {
	return usecase.NewHealthReporter(gw)
}

// ProvideHTTPHandler registers the market data routes.
func ProvideHTTPHandler(l *applogger.Logger, gw *usecase.Gateway, health *usecase.HealthReporter) xhttp.Handler {
	return api.NewMarketDataEchoHandler(l.With(applogger.String("component", "http")), gw, health)
}

// ProvideKafkaConsumer creates the prefetch consumer. Nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, m repository.Metrics) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.PrefetchTopic == "" {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerStartOffset(c.StartOffset),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
		pkgkafka.WithConsumerLogger(l.With(applogger.String("component", "kafka_consumer"))),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		After: func(_ context.Context, _ string, _ kafkago.Message, err error) {
			if err != nil {
				m.RecordError("prefetch_handle")
			}
		},
	})
	return consumer, nil
}

// ProvidePrefetchHandler warms the cache from the prefetch topic.
func ProvidePrefetchHandler(cfg *config.Config, gw *usecase.Gateway, m repository.Metrics, l *applogger.Logger) *usecase.PrefetchHandler {
	return usecase.NewPrefetchHandler(cfg.Kafka.PrefetchTopic, gw, m, l.With(applogger.String("component", "prefetch")))
}

// ProvideApp creates the application server. Aggregated warnings go to Kafka
// when a logs topic is configured.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	gw *usecase.Gateway,
	handler xhttp.Handler,
	store pkgcache.Store,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	prefetch *usecase.PrefetchHandler,
	chClient *pkgch.Client,
) *server.App {
	if producer != nil && cfg.Kafka.LogsTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      internalrepo.NewKafkaLogPublisher(producer),
		})
	}
	return server.New(cfg, l, gw, handler, store, producer, consumer, prefetch, chClient)
}
