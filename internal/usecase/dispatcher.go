package usecase

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
	pkgkafka "MarketPulse/pkg/kafka"
	"MarketPulse/pkg/queue"
	"MarketPulse/pkg/util"
)

// RunDispatcher hands a run request to the asynchronous runner.
type RunDispatcher interface {
	Dispatch(ctx context.Context, date time.Time) error
}

// KafkaRunDispatcher publishes run requests to the request topic.
type KafkaRunDispatcher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaRunDispatcher(producer *pkgkafka.Producer, topic string) *KafkaRunDispatcher {
	return &KafkaRunDispatcher{producer: producer, topic: topic}
}

func (d *KafkaRunDispatcher) Dispatch(ctx context.Context, date time.Time) error {
	day := util.FormatDate(date)
	return d.producer.Publish(ctx, d.topic, []byte(day), models.RunRequest{Date: day})
}

// QueueRunDispatcher enqueues run requests on a job queue.
type QueueRunDispatcher struct {
	q queue.Queue
}

func NewQueueRunDispatcher(q queue.Queue) *QueueRunDispatcher {
	return &QueueRunDispatcher{q: q}
}

func (d *QueueRunDispatcher) Dispatch(ctx context.Context, date time.Time) error {
	return d.q.Enqueue(ctx, RunJobType, models.RunRequest{Date: util.FormatDate(date)})
}

var (
	_ RunDispatcher = (*KafkaRunDispatcher)(nil)
	_ RunDispatcher = (*QueueRunDispatcher)(nil)
)
