package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Writer is the subset of kafka.Writer the broker needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes every topic through one writer and consumes each topic
// with its own consumer-group reader. Kafka has no per-message nack, so failed
// messages are retried in-process before their offset is committed.
type Kafka struct {
	brokers []string
	groupID string
	writer  Writer

	mu      sync.Mutex
	readers []*kafka.Reader

	retryDelay time.Duration
	wg         sync.WaitGroup
	logger     *slog.Logger
}

var _ Broker = (*Kafka)(nil)

func NewKafka(brokers []string, groupID string, logger *slog.Logger) *Kafka {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
	}
	return NewKafkaWithWriter(brokers, groupID, w, logger)
}

// NewKafkaWithWriter allows injecting a test writer.
func NewKafkaWithWriter(brokers []string, groupID string, w Writer, logger *slog.Logger) *Kafka {
	return &Kafka{
		brokers:    brokers,
		groupID:    groupID,
		writer:     w,
		retryDelay: time.Second,
		logger:     logger,
	}
}

func (k *Kafka) Publish(ctx context.Context, topic Topic, payload any) error {
	body, err := encode(topic, payload)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Topic: string(topic),
		Key:   []byte(uuid.NewString()),
		Value: body,
		Time:  time.Now(),
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (k *Kafka) Subscribe(ctx context.Context, topic Topic, handler Handler, maxRedeliveries int) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		Topic:    string(topic),
		GroupID:  k.groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	k.mu.Lock()
	k.readers = append(k.readers, reader)
	k.mu.Unlock()

	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		k.logger.Info("Consumer started", "topic", topic, "broker", "kafka", "group", k.groupID)
		for {
			if ctx.Err() != nil {
				return
			}
			m, err := reader.FetchMessage(ctx)
			if err != nil {
				// io.EOF means the reader was closed
				if ctx.Err() != nil || errors.Is(err, io.EOF) {
					return
				}
				k.logger.Warn("Error fetching message", "topic", topic, "error", err)
				if !k.sleep(ctx) {
					return
				}
				continue
			}

			k.handle(ctx, topic, m, handler, maxRedeliveries)

			if err := reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
				k.logger.Error("Failed to commit offset", "topic", topic, "offset", m.Offset, "error", err)
			}
		}
	}()
	return nil
}

func (k *Kafka) handle(ctx context.Context, topic Topic, m kafka.Message, handler Handler, maxRedeliveries int) {
	for attempt := 1; ; attempt++ {
		err := handler(ctx, m.Value)
		if err == nil {
			return
		}
		if attempt >= maxRedeliveries {
			k.logger.Error("Dropping message after max redeliveries",
				"topic", topic, "offset", m.Offset, "attempts", attempt, "error", err)
			return
		}
		k.logger.Warn("Task failed, retrying", "topic", topic, "offset", m.Offset, "attempts", attempt, "error", err)
		if !k.sleep(ctx) {
			return
		}
	}
}

func (k *Kafka) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(k.retryDelay):
		return true
	}
}

func (k *Kafka) Close() error {
	var firstErr error
	k.mu.Lock()
	for _, r := range k.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	k.readers = nil
	k.mu.Unlock()

	k.wg.Wait()
	if err := k.writer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
