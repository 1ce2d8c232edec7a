package repository

import (
	"context"

	"MarketGate/internal/domain/models"
	"MarketGate/internal/domain/repository"
	pkgkafka "MarketGate/pkg/kafka"
	applogger "MarketGate/pkg/logger"
)

// KafkaEventPublisher implements EventPublisher for Kafka. Events are keyed by
// provider or symbol so one subject's transitions stay ordered.
// The producer is shared and owned by the caller.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, ev models.GatewayEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.Key()), ev)
}

func (p *KafkaEventPublisher) Close() error { return nil }

// KafkaLogPublisher ships aggregated log batches for the logger collector.
type KafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func NewKafkaLogPublisher(producer *pkgkafka.Producer) *KafkaLogPublisher {
	return &KafkaLogPublisher{producer: producer}
}

func (p *KafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// NopEventPublisher drops events; used when Kafka is disabled.
type NopEventPublisher struct{}

func (NopEventPublisher) Publish(context.Context, models.GatewayEvent) error { return nil }

func (NopEventPublisher) Close() error { return nil }

var (
	_ repository.EventPublisher = (*KafkaEventPublisher)(nil)
	_ repository.EventPublisher = NopEventPublisher{}
	_ applogger.Publisher       = (*KafkaLogPublisher)(nil)
)
