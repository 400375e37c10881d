package repository

import (
	"context"
	"strconv"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	pkgkafka "FinCast/pkg/kafka"
)

var (
	_ domrepo.EventPublisher = (*KafkaPublisher)(nil)
	_ domrepo.EventPublisher = NopPublisher{}
)

// KafkaPublisher emits forecast events keyed by user so a user's events stay ordered.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishForecast(ctx context.Context, ev models.ForecastEvent) error {
	if ev.SentAt.IsZero() {
		ev.SentAt = time.Now().UTC()
	}
	return p.producer.Publish(ctx, p.topic, []byte(strconv.FormatInt(ev.UserID, 10)), ev)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher drops events. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishForecast(context.Context, models.ForecastEvent) error { return nil }
func (NopPublisher) Close() error                                                { return nil }
