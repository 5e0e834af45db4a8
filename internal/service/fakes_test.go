package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
	"github.com/kursadbilgin/broadcast-engine/internal/provider"
	"github.com/kursadbilgin/broadcast-engine/internal/queue"
)

type fakeAdapter struct {
	kind      domain.DeliveryKind
	deliverFn func(ctx context.Context, channel domain.Channel, message string) (*provider.Delivery, error)
	calls     atomic.Int32
}

func (f *fakeAdapter) Kind() domain.DeliveryKind { return f.kind }

func (f *fakeAdapter) Deliver(ctx context.Context, channel domain.Channel, message string) (*provider.Delivery, error) {
	f.calls.Add(1)
	if f.deliverFn != nil {
		return f.deliverFn(ctx, channel, message)
	}
	return &provider.Delivery{StatusCode: 200}, nil
}

type fakeHistoryStore struct {
	mu       sync.Mutex
	appended []domain.HistoryRecord
	appendFn func(ctx context.Context, record domain.HistoryRecord) error
	recentFn func(ctx context.Context, limit int) ([]domain.HistoryRecord, error)
}

func (f *fakeHistoryStore) Append(ctx context.Context, record domain.HistoryRecord) error {
	if f.appendFn != nil {
		return f.appendFn(ctx, record)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, record)
	return nil
}

func (f *fakeHistoryStore) Recent(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	if f.recentFn != nil {
		return f.recentFn(ctx, limit)
	}
	return nil, nil
}

func (f *fakeHistoryStore) records() []domain.HistoryRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.HistoryRecord(nil), f.appended...)
}

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, channelID string) (bool, error)
	waitFn  func(ctx context.Context, channelID string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, channelID string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, channelID)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, channelID string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, channelID)
	}
	return nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeConsumer) Close() error { return nil }
