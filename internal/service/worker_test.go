package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
	"github.com/kursadbilgin/broadcast-engine/internal/queue"
	"go.uber.org/zap"
)

type fakeDispatcher struct {
	broadcastFn func(ctx context.Context, req BroadcastRequest) (*domain.BroadcastResult, error)
}

func (f *fakeDispatcher) Broadcast(ctx context.Context, req BroadcastRequest) (*domain.BroadcastResult, error) {
	if f.broadcastFn != nil {
		return f.broadcastFn(ctx, req)
	}
	return &domain.BroadcastResult{ID: req.ID}, nil
}

func TestWorkerProcessMessage(t *testing.T) {
	t.Parallel()

	var got BroadcastRequest
	dispatcher := &fakeDispatcher{
		broadcastFn: func(ctx context.Context, req BroadcastRequest) (*domain.BroadcastResult, error) {
			got = req
			return &domain.BroadcastResult{ID: req.ID}, nil
		},
	}

	worker, err := NewWorker(&fakeConsumer{}, dispatcher, 2, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWorker() error = %v", err)
	}

	err = worker.processMessage(context.Background(), queue.BroadcastMessage{
		BroadcastID: "b1",
		Message:     "gm",
		Tag:         domain.EventTagAlert,
		Author:      "desk",
		ChannelIDs:  []string{"slack"},
	})
	if err != nil {
		t.Fatalf("processMessage() error = %v", err)
	}

	if got.ID != "b1" || got.Message != "gm" || got.Tag != domain.EventTagAlert || got.Author != "desk" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(got.ChannelIDs) != 1 || got.ChannelIDs[0] != "slack" {
		t.Fatalf("channel ids = %v, want [slack]", got.ChannelIDs)
	}
}

func TestWorkerProcessMessagePropagatesValidationError(t *testing.T) {
	t.Parallel()

	dispatcher := &fakeDispatcher{
		broadcastFn: func(ctx context.Context, req BroadcastRequest) (*domain.BroadcastResult, error) {
			return nil, domain.ErrValidation
		},
	}
	worker, err := NewWorker(&fakeConsumer{}, dispatcher, 1, nil)
	if err != nil {
		t.Fatalf("NewWorker() error = %v", err)
	}

	err = worker.processMessage(context.Background(), queue.BroadcastMessage{BroadcastID: "b1", Message: "gm"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("processMessage() error = %v, want ErrValidation", err)
	}
}

func TestWorkerStartRunsConcurrentConsumers(t *testing.T) {
	t.Parallel()

	var started atomic.Int32
	consumer := &fakeConsumer{
		consumeFn: func(ctx context.Context, queueName string, handler queue.MessageHandler) error {
			if queueName != queue.QueueName {
				t.Errorf("queue = %q, want %q", queueName, queue.QueueName)
			}
			started.Add(1)
			<-ctx.Done()
			return nil
		},
	}

	worker, err := NewWorker(consumer, &fakeDispatcher{}, 3, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWorker() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := worker.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := started.Load(); got != 3 {
		t.Fatalf("consumers started = %d, want 3", got)
	}
}

func TestWorkerStartPropagatesConsumerError(t *testing.T) {
	t.Parallel()

	consumeErr := errors.New("consume failed")
	consumer := &fakeConsumer{
		consumeFn: func(ctx context.Context, queueName string, handler queue.MessageHandler) error {
			return consumeErr
		},
	}

	worker, err := NewWorker(consumer, &fakeDispatcher{}, 2, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWorker() error = %v", err)
	}

	if err := worker.Start(context.Background()); !errors.Is(err, consumeErr) {
		t.Fatalf("Start() error = %v, want %v", err, consumeErr)
	}
}

func TestNewWorkerValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewWorker(nil, &fakeDispatcher{}, 1, nil); err == nil {
		t.Fatal("expected error for nil consumer")
	}
	if _, err := NewWorker(&fakeConsumer{}, nil, 1, nil); err == nil {
		t.Fatal("expected error for nil dispatcher")
	}

	worker, err := NewWorker(&fakeConsumer{}, &fakeDispatcher{}, 0, nil)
	if err != nil {
		t.Fatalf("NewWorker() error = %v", err)
	}
	if worker.concurrency != minWorkerConcurrency {
		t.Fatalf("concurrency = %d, want %d", worker.concurrency, minWorkerConcurrency)
	}
}
