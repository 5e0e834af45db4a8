package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitMQConsumer feeds broadcast messages to a handler, one unacked message
// per prefetch slot.
//
// Every message is settled exactly once and never requeued: a broadcast that
// failed or was interrupted may already have reached some channels, and
// posting it again would duplicate it there. Such messages go to the DLQ.
type RabbitMQConsumer struct {
	client   *RabbitMQ
	prefetch int
	logger   *zap.Logger
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:   client,
		prefetch: prefetch,
		logger:   logger,
	}
}

// Consume blocks until ctx is done, resubscribing with backoff whenever the
// broker drops the subscription.
func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	backoff := reconnectBackoff
	for {
		err := c.subscribe(ctx, queue, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = reconnectBackoff
			continue
		}

		c.logger.Warn("broadcast subscription lost",
			zap.String("queue", queue),
			zap.Duration("retryIn", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
	}
}

func (c *RabbitMQConsumer) subscribe(ctx context.Context, queue string, handler MessageHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			if err := c.handleDelivery(ctx, d, handler); err != nil {
				return err
			}
		}
	}
}

func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler MessageHandler) error {
	msg, err := decodeDelivery(d)
	if err != nil {
		return c.deadLetter(d, "invalid payload", err)
	}

	logger := c.logger.With(zap.String("broadcastId", msg.BroadcastID))

	// A redelivery means an earlier attempt lost its ack, possibly after
	// posting to some channels.
	if d.Redelivered {
		logger.Warn("dead-lettering redelivered broadcast")
		if err := d.Reject(false); err != nil {
			return fmt.Errorf("failed to reject redelivered broadcast %s: %w", msg.BroadcastID, err)
		}
		return nil
	}

	if err := handler(ctx, msg); err != nil {
		return c.deadLetter(d, "handler failed", err)
	}

	if err := d.Ack(false); err != nil {
		return fmt.Errorf("failed to ack broadcast %s: %w", msg.BroadcastID, err)
	}
	return nil
}

func (c *RabbitMQConsumer) deadLetter(d amqp.Delivery, reason string, cause error) error {
	c.logger.Error("dead-lettering broadcast message",
		zap.String("reason", reason),
		zap.String("messageId", d.MessageId),
		zap.Error(cause),
	)
	if err := d.Reject(false); err != nil {
		return fmt.Errorf("failed to reject message (%s): %w", reason, err)
	}
	return nil
}

// decodeDelivery parses the body and falls back to the envelope properties for
// the broadcast and correlation ids.
func decodeDelivery(d amqp.Delivery) (BroadcastMessage, error) {
	var msg BroadcastMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return msg, fmt.Errorf("invalid JSON: %w", err)
	}
	if msg.BroadcastID == "" {
		msg.BroadcastID = d.MessageId
	}
	if msg.CorrelationID == "" {
		msg.CorrelationID = d.CorrelationId
	}
	if err := msg.Validate(); err != nil {
		return msg, err
	}
	return msg, nil
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
