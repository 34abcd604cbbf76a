package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func newFakeReader(values ...string) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(values))}
	for i, v := range values {
		r.msgs <- kafka.Message{Topic: "runs", Offset: int64(i), Value: []byte(v)}
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}

type funcHandler struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(payload string, attempt int) error
}

func (h *funcHandler) Topic() string { return "runs" }

func (h *funcHandler) Handle(_ context.Context, data []byte) error {
	h.mu.Lock()
	h.calls[string(data)]++
	n := h.calls[string(data)]
	h.mu.Unlock()
	return h.fn(string(data), n)
}

func startConsumer(t *testing.T, reader *fakeReader, dlq *fakeWriter, h MessageHandler) *Consumer {
	t.Helper()
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
		WithConsumerDLQ("runs.dlq"),
	)
	require.NoError(t, err)
	c.SetReaderFactory(func(*ConsumerConfig, string) Reader { return reader })
	c.SetDLQWriter(dlq)
	c.RegisterHandler(h)
	require.NoError(t, c.Start(context.Background()))
	return c
}

func TestConsumerRetriesThenCommits(t *testing.T) {
	reader := newFakeReader(`{"date":"2026-02-10"}`)
	dlq := &fakeWriter{}
	h := &funcHandler{calls: map[string]int{}, fn: func(_ string, attempt int) error {
		if attempt < 2 {
			return errors.New("clickhouse unavailable")
		}
		return nil
	}}
	c := startConsumer(t, reader, dlq, h)

	require.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, 0, dlq.count())
	assert.Equal(t, 2, h.calls[`{"date":"2026-02-10"}`])
}

func TestConsumerSendsPermanentFailuresToDLQ(t *testing.T) {
	reader := newFakeReader(`bad`, `{"date":"2026-02-10"}`)
	dlq := &fakeWriter{}
	h := &funcHandler{calls: map[string]int{}, fn: func(p string, _ int) error {
		if p == "bad" {
			return ErrPermanent
		}
		return nil
	}}
	c := startConsumer(t, reader, dlq, h)

	require.Eventually(t, func() bool { return len(reader.commits()) == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, 1, dlq.count())
	assert.Equal(t, 1, h.calls["bad"], "permanent errors are not retried")
	assert.Equal(t, "runs", string(dlq.msgs[0].Headers[0].Value))
}

func TestHookChainRecoversPanics(t *testing.T) {
	chain := NewHookChain(TraceHook(), HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("boom")
		},
	})
	_, _, _, err := chain.BeforeHandle(context.Background(), "runs", kafka.Message{}, nil)
	assert.Error(t, err)

	ctx, _, _, err := NewHookChain(TraceHook()).BeforeHandle(context.Background(), "runs",
		kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", TraceID(ctx))
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 80*time.Millisecond, attempt)
		assert.LessOrEqual(t, d, 80*time.Millisecond)
		assert.Greater(t, d, time.Duration(0))
	}
}
