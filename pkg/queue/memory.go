package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"MarketPulse/pkg/logger"
)

// MemoryQueue runs jobs on an in-process worker pool. Used when no Redis is
// configured; queued work does not survive a restart.
type MemoryQueue struct {
	logger *logger.Logger
	config *QueueConfig
	jobs   map[string]Job
	msgs   chan Message

	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	dead      []Message
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates an in-memory queue.
func NewMemoryQueue(lgr *logger.Logger, config *QueueConfig) *MemoryQueue {
	if lgr == nil {
		lgr = logger.Nop()
	}
	cfg := config.withDefaults()
	return &MemoryQueue{
		logger: lgr,
		config: cfg,
		jobs:   make(map[string]Job),
		msgs:   make(chan Message, cfg.QueueSize),
	}
}

func (m *MemoryQueue) RegisterJob(job Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.Type()]; exists {
		m.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	m.jobs[job.Type()] = job
}

func (m *MemoryQueue) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isRunning {
		return fmt.Errorf("queue already running")
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.isRunning = true
	for i := 0; i < m.config.Workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	m.logger.Info("memory queue started", logger.Int("workers", m.config.Workers))
	return nil
}

func (m *MemoryQueue) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = false
	m.cancel()
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		return nil
	}
}

// Enqueue blocks while the buffer is full, until ctx is done.
func (m *MemoryQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	m.mu.RLock()
	running := m.isRunning
	_, known := m.jobs[msgType]
	m.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}
	if !known {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return m.push(ctx, msg)
}

func (m *MemoryQueue) push(ctx context.Context, msg Message) error {
	select {
	case m.msgs <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return ErrNotRunning
	}
}

// DeadLetters returns messages that exhausted their retries.
func (m *MemoryQueue) DeadLetters() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Message(nil), m.dead...)
}

func (m *MemoryQueue) worker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case msg := <-m.msgs:
			m.process(msg)
		}
	}
}

func (m *MemoryQueue) process(msg Message) {
	m.mu.RLock()
	job := m.jobs[msg.Type]
	m.mu.RUnlock()

	err := job.Handle(m.ctx, msg.Payload)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	m.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= m.config.RetryLimit {
		m.mu.Lock()
		m.dead = append(m.dead, msg)
		m.mu.Unlock()
		return
	}
	msg.Attempts++
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		select {
		case <-m.ctx.Done():
		case <-time.After(m.config.RetryDelay):
			_ = m.push(m.ctx, msg)
		}
	}()
}
