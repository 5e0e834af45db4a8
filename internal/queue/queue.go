package queue

import "context"

// Publisher publishes broadcast messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg BroadcastMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg BroadcastMessage) error

// Consumer consumes broadcast messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// QueueName is the durable work queue for asynchronous broadcasts.
	QueueName = "broadcasts"
	// DLQName receives rejected broadcast messages.
	DLQName = "dlq.broadcasts"

	dlqRoutingKey = "broadcasts"
)
