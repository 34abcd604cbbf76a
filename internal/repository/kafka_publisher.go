package repository

import (
	"context"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	pkgkafka "MarketPulse/pkg/kafka"
	applogger "MarketPulse/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// KafkaEventPublisher publishes report events keyed by date so every event
// for a date lands on the same partition.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	l        *applogger.Logger
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

// SetLogger injects a structured logger.
func (p *KafkaEventPublisher) SetLogger(l *applogger.Logger) { p.l = l }

func (p *KafkaEventPublisher) PublishReport(ctx context.Context, evt models.ReportEvent) error {
	err := p.producer.Publish(ctx, p.topic, []byte(evt.Date), evt,
		kafka.Header{Key: "event", Value: []byte("daily_report")},
	)
	if err != nil {
		return err
	}
	if p.l != nil {
		p.l.Debug("report event published",
			applogger.String("topic", p.topic),
			applogger.String("date", evt.Date),
			applogger.Int("market_score", evt.MarketScore),
		)
	}
	return nil
}

func (p *KafkaEventPublisher) Close() error { return p.producer.Close() }

// NoopPublisher drops events; used when Kafka is disabled.
type NoopPublisher struct{}

var _ domrepo.EventPublisher = NoopPublisher{}

func (NoopPublisher) PublishReport(context.Context, models.ReportEvent) error { return nil }
func (NoopPublisher) Close() error                                           { return nil }
