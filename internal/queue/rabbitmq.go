package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQ publishes to durable per-topic queues on the default exchange.
// Each subscription gets its own channel with manual acks.
type RabbitMQ struct {
	conn *amqp.Connection

	// amqp channels are not safe for concurrent publishing
	pubMu sync.Mutex
	pubCh *amqp.Channel

	failMu   sync.Mutex
	failures map[string]int // message id -> failed attempts

	wg     sync.WaitGroup
	logger *slog.Logger
}

var _ Broker = (*RabbitMQ)(nil)

func NewRabbitMQ(url string, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	for _, topic := range Topics {
		if err := declareQueue(ch, topic); err != nil {
			conn.Close()
			return nil, err
		}
	}

	logger.Info("Connected to RabbitMQ")
	return &RabbitMQ{
		conn:     conn,
		pubCh:    ch,
		failures: make(map[string]int),
		logger:   logger,
	}, nil
}

func declareQueue(ch *amqp.Channel, topic Topic) error {
	_, err := ch.QueueDeclare(
		string(topic),
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", topic, err)
	}
	return nil
}

func (r *RabbitMQ) Publish(ctx context.Context, topic Topic, payload any) error {
	body, err := encode(topic, payload)
	if err != nil {
		return err
	}

	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	err = r.pubCh.PublishWithContext(ctx,
		"",            // exchange
		string(topic), // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (r *RabbitMQ) Subscribe(ctx context.Context, topic Topic, handler Handler, maxRedeliveries int) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := declareQueue(ch, topic); err != nil {
		ch.Close()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(topic),
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to consume %s: %w", topic, err)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ch.Close()
		r.logger.Info("Consumer started", "topic", topic, "broker", "rabbitmq")
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				r.handle(ctx, topic, d, handler, maxRedeliveries)
			}
		}
	}()
	return nil
}

func (r *RabbitMQ) handle(ctx context.Context, topic Topic, d amqp.Delivery, handler Handler, maxRedeliveries int) {
	err := handler(ctx, d.Body)
	if err == nil {
		r.clearFailures(d.MessageId)
		if err := d.Ack(false); err != nil {
			r.logger.Error("Failed to ack message", "topic", topic, "message_id", d.MessageId, "error", err)
		}
		return
	}

	attempts := r.recordFailure(d)
	if attempts >= maxRedeliveries {
		r.clearFailures(d.MessageId)
		r.logger.Error("Dropping message after max redeliveries",
			"topic", topic, "message_id", d.MessageId, "attempts", attempts, "error", err)
		if err := d.Nack(false, false); err != nil {
			r.logger.Error("Failed to nack message", "topic", topic, "message_id", d.MessageId, "error", err)
		}
		return
	}

	r.logger.Warn("Task failed, requeueing", "topic", topic, "message_id", d.MessageId, "attempts", attempts, "error", err)
	if err := d.Nack(false, true); err != nil {
		r.logger.Error("Failed to nack message", "topic", topic, "message_id", d.MessageId, "error", err)
	}
}

// recordFailure returns how many times the delivery has failed so far.
// Quorum queues report x-delivery-count; classic queues rely on the local count.
func (r *RabbitMQ) recordFailure(d amqp.Delivery) int {
	r.failMu.Lock()
	defer r.failMu.Unlock()

	r.failures[d.MessageId]++
	attempts := r.failures[d.MessageId]
	if n, ok := d.Headers["x-delivery-count"].(int64); ok && int(n)+1 > attempts {
		attempts = int(n) + 1
	}
	return attempts
}

func (r *RabbitMQ) clearFailures(id string) {
	r.failMu.Lock()
	delete(r.failures, id)
	r.failMu.Unlock()
}

func (r *RabbitMQ) Close() error {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	if err := r.pubCh.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	if err := r.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	r.wg.Wait()
	return nil
}
