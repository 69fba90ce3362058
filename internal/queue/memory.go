package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

var ErrBrokerClosed = errors.New("broker closed")

const memoryQueueSize = 256

type memoryMessage struct {
	id       string
	body     []byte
	attempts int
}

// Memory is an in-process broker with one buffered queue per topic.
// Failed messages go back to the tail of their queue until the cap is hit.
type Memory struct {
	mu     sync.RWMutex
	queues map[Topic]chan memoryMessage
	closed bool
	wg     sync.WaitGroup
	logger *slog.Logger
}

var _ Broker = (*Memory)(nil)

func NewMemory(logger *slog.Logger) *Memory {
	return &Memory{
		queues: make(map[Topic]chan memoryMessage),
		logger: logger,
	}
}

// queue must be called with mu held for writing
func (m *Memory) queue(topic Topic) chan memoryMessage {
	q, ok := m.queues[topic]
	if !ok {
		q = make(chan memoryMessage, memoryQueueSize)
		m.queues[topic] = q
	}
	return q
}

func (m *Memory) Publish(ctx context.Context, topic Topic, payload any) error {
	body, err := encode(topic, payload)
	if err != nil {
		return err
	}
	return m.enqueue(ctx, topic, memoryMessage{id: uuid.NewString(), body: body})
}

func (m *Memory) enqueue(ctx context.Context, topic Topic, msg memoryMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrBrokerClosed
	}
	select {
	case m.queue(topic) <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("queue %s is full", topic)
	}
}

func (m *Memory) Subscribe(ctx context.Context, topic Topic, handler Handler, maxRedeliveries int) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrBrokerClosed
	}
	q := m.queue(topic)
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.logger.Info("Consumer started", "topic", topic, "broker", "memory")
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-q:
				if !ok {
					return
				}
				m.handle(ctx, topic, msg, handler, maxRedeliveries)
			}
		}
	}()
	return nil
}

func (m *Memory) handle(ctx context.Context, topic Topic, msg memoryMessage, handler Handler, maxRedeliveries int) {
	err := handler(ctx, msg.body)
	if err == nil {
		return
	}
	msg.attempts++
	if msg.attempts >= maxRedeliveries {
		m.logger.Error("Dropping message after max redeliveries",
			"topic", topic, "message_id", msg.id, "attempts", msg.attempts, "error", err)
		return
	}
	m.logger.Warn("Task failed, requeueing", "topic", topic, "message_id", msg.id, "attempts", msg.attempts, "error", err)
	if err := m.enqueue(ctx, topic, msg); err != nil {
		m.logger.Error("Failed to requeue message", "topic", topic, "message_id", msg.id, "error", err)
	}
}

// Close stops accepting messages and waits for consumers to drain.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for _, q := range m.queues {
		close(q)
	}
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}
