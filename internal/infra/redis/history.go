package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
	"github.com/kursadbilgin/broadcast-engine/internal/history"
	goredis "github.com/redis/go-redis/v9"
)

const defaultRedisKey = "broadcast:history"

var _ history.Store = (*HistoryStore)(nil)

// HistoryStore keeps history in a capped Redis list, newest at the head.
type HistoryStore struct {
	client   *goredis.Client
	key      string
	capacity int
}

func NewHistoryStore(client *goredis.Client, key string, capacity int) (*HistoryStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = defaultRedisKey
	}

	return &HistoryStore{
		client:   client,
		key:      key,
		capacity: capacityOrDefault(capacity),
	}, nil
}

func (s *HistoryStore) Append(ctx context.Context, record domain.HistoryRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LPush(ctx, s.key, payload)
		pipe.LTrim(ctx, s.key, 0, int64(s.capacity-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append history record: %w", err)
	}
	return nil
}

func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 || limit > s.capacity {
		limit = s.capacity
	}

	raw, err := s.client.LRange(ctx, s.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	records := make([]domain.HistoryRecord, 0, len(raw))
	for _, item := range raw {
		var record domain.HistoryRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			return nil, fmt.Errorf("failed to decode history record: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *HistoryStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func capacityOrDefault(capacity int) int {
	if capacity <= 0 {
		return domain.HistoryCapacity
	}
	return capacity
}
