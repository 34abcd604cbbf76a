package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	pkgkafka "MarketPulse/pkg/kafka"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/queue"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taipei(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)
	return loc
}

func TestKafkaRunHandlerRunsRequestedDate(t *testing.T) {
	r := &fakeRunner{}
	h := NewKafkaRunHandler("runs", r, time.UTC)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"date":"2026-02-10"}`)))
	assert.Equal(t, []time.Time{day}, r.dates)
	assert.Equal(t, "runs", h.Topic())
}

func TestKafkaRunHandlerDefaultsToExchangeToday(t *testing.T) {
	r := &fakeRunner{}
	h := NewKafkaRunHandler("runs", r, taipei(t))
	h.now = func() time.Time { return time.Date(2026, 2, 10, 20, 0, 0, 0, time.UTC) }

	require.NoError(t, h.Handle(context.Background(), []byte(`{}`)))
	assert.Equal(t, []time.Time{day.AddDate(0, 0, 1)}, r.dates)
}

func TestKafkaRunHandlerPermanentFailures(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		err     error
	}{
		{"bad json", `{"date":`, nil},
		{"bad date", `{"date":"10/02/2026"}`, nil},
		{"no data", `{"date":"2026-02-10"}`, models.ErrNoDataForDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewKafkaRunHandler("runs", &fakeRunner{err: tc.err}, time.UTC)
			err := h.Handle(context.Background(), []byte(tc.payload))
			assert.ErrorIs(t, err, pkgkafka.ErrPermanent)
		})
	}
}

func TestKafkaRunHandlerRetryableAndInProgress(t *testing.T) {
	h := NewKafkaRunHandler("runs", &fakeRunner{err: errBoom}, time.UTC)
	err := h.Handle(context.Background(), []byte(`{"date":"2026-02-10"}`))
	assert.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, pkgkafka.ErrPermanent)

	h = NewKafkaRunHandler("runs", &fakeRunner{err: models.ErrRunInProgress}, time.UTC)
	assert.NoError(t, h.Handle(context.Background(), []byte(`{"date":"2026-02-10"}`)))
}

func TestQueueDispatcherRunsJob(t *testing.T) {
	r := &fakeRunner{}
	q := queue.NewMemoryQueue(applogger.Nop(), &queue.QueueConfig{Workers: 1, QueueSize: 4})
	q.RegisterJob(NewRunJob(r, time.UTC))
	require.NoError(t, q.Start())
	t.Cleanup(func() { _ = q.Stop(context.Background()) })

	require.NoError(t, NewQueueRunDispatcher(q).Dispatch(context.Background(), day))

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.dates) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, day, r.dates[0])
}

func TestRunJobRejectsBadPayload(t *testing.T) {
	j := NewRunJob(&fakeRunner{}, time.UTC)
	assert.Equal(t, RunJobType, j.Type())
	assert.Error(t, j.Handle(context.Background(), json.RawMessage(`{"date":"nope"}`)))
}

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestKafkaDispatcherPublishesRunRequest(t *testing.T) {
	w := &recordingWriter{}
	d := NewKafkaRunDispatcher(pkgkafka.NewProducerWithWriter(w, "none"), "runs")

	require.NoError(t, d.Dispatch(context.Background(), day))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "runs", w.msgs[0].Topic)
	assert.Equal(t, "2026-02-10", string(w.msgs[0].Key))

	var req models.RunRequest
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &req))
	assert.Equal(t, "2026-02-10", req.Date)
}
