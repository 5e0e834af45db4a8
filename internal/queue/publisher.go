package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	headerAuthor       = "x-broadcast-author"
	headerChannelCount = "x-broadcast-channels"
)

// RabbitMQPublisher enqueues broadcasts with publisher confirms, so an accepted
// HTTP request means the broker has taken ownership of the message.
type RabbitMQPublisher struct {
	client *RabbitMQ
	now    func() time.Time
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client, now: time.Now}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, queue string, msg BroadcastMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}

	publishing, err := toPublishing(msg, p.now().UTC())
	if err != nil {
		return err
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	confirmation, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, publishing)
	if err != nil {
		return fmt.Errorf("failed to publish broadcast %s to queue %q: %w", msg.BroadcastID, queue, err)
	}

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("waiting for broker confirm of broadcast %s: %w", msg.BroadcastID, err)
	}
	if !acked {
		return fmt.Errorf("broker nacked broadcast %s", msg.BroadcastID)
	}

	return nil
}

// toPublishing maps a broadcast onto the AMQP envelope. The broadcast id and
// correlation id double as envelope properties so the consumer can recover
// them from a body that lost them.
func toPublishing(msg BroadcastMessage, at time.Time) (amqp.Publishing, error) {
	if err := msg.Validate(); err != nil {
		return amqp.Publishing{}, fmt.Errorf("invalid broadcast message: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal broadcast message: %w", err)
	}

	headers := amqp.Table{headerChannelCount: int32(len(msg.ChannelIDs))}
	if msg.Author != "" {
		headers[headerAuthor] = msg.Author
	}

	return amqp.Publishing{
		Headers:       headers,
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     at,
		MessageId:     msg.BroadcastID,
		CorrelationId: msg.CorrelationID,
		Type:          msg.Tag,
		Body:          payload,
	}, nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
