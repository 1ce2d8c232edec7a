package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domrepo "MarketGate/internal/domain/repository"
	pkgkafka "MarketGate/pkg/kafka"
	applogger "MarketGate/pkg/logger"
)

// PrefetchHandler warms the quote cache from Kafka requests through the
// normal Gateway path.
type PrefetchHandler struct {
	topic   string
	gw      *Gateway
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewPrefetchHandler(topic string, gw *Gateway, metrics domrepo.Metrics, l *applogger.Logger) *PrefetchHandler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &PrefetchHandler{topic: topic, gw: gw, metrics: metrics, l: l}
}

func (h *PrefetchHandler) Topic() string { return h.topic }

// incoming message schema: {"symbols": [...], "concurrency": n}
func (h *PrefetchHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbols     []string `json:"symbols"`
		Concurrency int      `json:"concurrency"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("prefetch_unmarshal")
		return fmt.Errorf("prefetch: decode: %w", err)
	}
	if len(m.Symbols) == 0 {
		return nil
	}

	// producers may ask for less parallelism than configured, never more
	limit := h.gw.cfg.BatchConcurrency
	if m.Concurrency > 0 && m.Concurrency < limit {
		limit = m.Concurrency
	}

	start := time.Now()
	snaps, err := h.gw.GetQuotesBatch(ctx, m.Symbols, false, limit)
	h.metrics.RecordLatency("prefetch_batch_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("prefetch_batch")
		return fmt.Errorf("prefetch: %w", err)
	}

	degraded := 0
	for _, s := range snaps {
		if h.gw.IsDegraded(&s.Meta) {
			degraded++
		}
	}
	h.l.Debug("prefetch done",
		applogger.Int("requested", len(m.Symbols)),
		applogger.Int("served", len(snaps)),
		applogger.Int("degraded", degraded),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*PrefetchHandler)(nil)
