package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
	"github.com/kursadbilgin/broadcast-engine/internal/observability"
	"github.com/kursadbilgin/broadcast-engine/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// Dispatcher runs one broadcast to completion.
type Dispatcher interface {
	Broadcast(ctx context.Context, req BroadcastRequest) (*domain.BroadcastResult, error)
}

// Worker drains the async broadcast queue.
type Worker struct {
	consumer    queue.Consumer
	dispatcher  Dispatcher
	logger      *zap.Logger
	concurrency int
}

func NewWorker(consumer queue.Consumer, dispatcher Dispatcher, concurrency int, logger *zap.Logger) (*Worker, error) {
	if consumer == nil {
		return nil, fmt.Errorf("queue consumer is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Worker{
		consumer:    consumer,
		dispatcher:  dispatcher,
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

// Start consumes the broadcast queue until context cancellation.
func (w *Worker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.QueueName),
			)

			if err := w.consumer.Consume(groupCtx, queue.QueueName, w.processMessage); err != nil {
				w.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (w *Worker) processMessage(ctx context.Context, msg queue.BroadcastMessage) error {
	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}

	result, err := w.dispatcher.Broadcast(ctx, BroadcastRequest{
		ID:         msg.BroadcastID,
		Message:    msg.Message,
		Tag:        msg.Tag,
		Author:     msg.Author,
		ChannelIDs: msg.ChannelIDs,
	})
	if err != nil {
		return fmt.Errorf("broadcast %s failed: %w", msg.BroadcastID, err)
	}

	observability.WithContextLogger(w.logger, ctx).Info("async broadcast processed",
		zap.String("broadcastId", result.ID),
		zap.String("summary", result.Summary()),
	)
	return nil
}
