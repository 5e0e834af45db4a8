package history

import (
	"context"
	"sync"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
)

var _ Store = (*Ring)(nil)

// Ring is an in-memory fixed-capacity history log.
type Ring struct {
	mu      sync.Mutex
	records []domain.HistoryRecord
	next    int
	size    int
}

func NewRing(capacity int) *Ring {
	return &Ring{records: make([]domain.HistoryRecord, normalizeCapacity(capacity))}
}

func (r *Ring) Append(_ context.Context, record domain.HistoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[r.next] = record
	r.next = (r.next + 1) % len(r.records)
	if r.size < len(r.records) {
		r.size++
	}
	return nil
}

func (r *Ring) Recent(_ context.Context, limit int) ([]domain.HistoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	limit = clampLimit(limit, len(r.records))
	if limit > r.size {
		limit = r.size
	}

	out := make([]domain.HistoryRecord, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.records)) % len(r.records)
		out = append(out, r.records[idx])
	}
	return out, nil
}

// Len returns the number of retained records.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
