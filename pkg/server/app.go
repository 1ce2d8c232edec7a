package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"MarketGate/internal/usecase"
	pkgcache "MarketGate/pkg/cache"
	pkgch "MarketGate/pkg/clickhouse"
	"MarketGate/pkg/config"
	xhttp "MarketGate/pkg/http"
	pkgkafka "MarketGate/pkg/kafka"
	applogger "MarketGate/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	gw         *usecase.Gateway
	handler    xhttp.Handler
	store      pkgcache.Store
	producer   *pkgkafka.Producer
	consumer   *pkgkafka.Consumer
	prefetch   pkgkafka.MessageHandler
	chClient   *pkgch.Client
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. Kafka and ClickHouse
// pieces may be nil when disabled.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	gw *usecase.Gateway,
	handler xhttp.Handler,
	store pkgcache.Store,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	prefetch pkgkafka.MessageHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:      cfg,
		l:        l,
		gw:       gw,
		handler:  handler,
		store:    store,
		producer: producer,
		consumer: consumer,
		prefetch: prefetch,
		chClient: chClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(a.cfg.Server.SlowRequest),
		xhttp.WithCORS(a.cfg.Server.CORS, a.cfg.Server.CORSOrigins...),
		xhttp.WithLogger(a.l),
	)
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	if a.consumer != nil && a.prefetch != nil {
		a.consumer.RegisterHandler(a.prefetch)
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
		} else {
			a.l.Info("prefetch consumer started", applogger.String("topic", a.prefetch.Topic()))
		}
	}

	a.l.Info("marketgate ready",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Strings("providers", a.cfg.Gateway.ProviderOrder),
		applogger.Bool("redis", a.cfg.Redis.Enabled),
		applogger.Bool("kafka", a.cfg.Kafka.Enabled),
	)

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first, then drains the gateway, then closes clients.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	// waits for in-flight event publishes
	if err := a.gw.Close(); err != nil {
		a.l.Warn("gateway close error", applogger.Error(err))
	}
	a.l.RemoveCollector()
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.l.Warn("cache close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
