// Package history keeps the bounded log of completed broadcasts.
//
// Every Store retains at most its capacity (domain.HistoryCapacity by
// default) and evicts the oldest record first. Appends are serialized by the
// backend: a mutex for Ring, a MULTI transaction for the Redis list store and
// a database transaction for the Postgres repository.
package history

import (
	"context"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
)

// Store is the persistence port for broadcast history.
type Store interface {
	Append(ctx context.Context, record domain.HistoryRecord) error
	// Recent returns up to limit records, most recent first.
	Recent(ctx context.Context, limit int) ([]domain.HistoryRecord, error)
}

func normalizeCapacity(capacity int) int {
	if capacity <= 0 {
		return domain.HistoryCapacity
	}
	return capacity
}

func clampLimit(limit, capacity int) int {
	if limit <= 0 || limit > capacity {
		return capacity
	}
	return limit
}
