package history

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
)

func record(i int) domain.HistoryRecord {
	return domain.HistoryRecord{
		ID:        fmt.Sprintf("r-%d", i),
		Channel:   "slack",
		Message:   fmt.Sprintf("message %d", i),
		Author:    "desk",
		Type:      domain.EventTagAlert,
		Timestamp: time.Unix(1_700_000_000+int64(i), 0),
	}
}

func TestRingEvictsOldestFirst(t *testing.T) {
	t.Parallel()

	ring := NewRing(0)
	ctx := context.Background()

	for i := 1; i <= domain.HistoryCapacity+1; i++ {
		if err := ring.Append(ctx, record(i)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	if ring.Len() != domain.HistoryCapacity {
		t.Fatalf("Len() = %d, want %d", ring.Len(), domain.HistoryCapacity)
	}

	recent, err := ring.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != domain.HistoryCapacity {
		t.Fatalf("Recent() len = %d, want %d", len(recent), domain.HistoryCapacity)
	}
	for i, r := range recent {
		want := fmt.Sprintf("r-%d", domain.HistoryCapacity+1-i)
		if r.ID != want {
			t.Fatalf("Recent()[%d] = %s, want %s", i, r.ID, want)
		}
	}
	for _, r := range recent {
		if r.ID == "r-1" {
			t.Fatal("oldest record should have been evicted")
		}
	}
}

func TestRingRecentLimit(t *testing.T) {
	t.Parallel()

	ring := NewRing(5)
	ctx := context.Background()

	empty, err := ring.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("Recent() on empty ring len = %d, want 0", len(empty))
	}

	for i := 1; i <= 3; i++ {
		_ = ring.Append(ctx, record(i))
	}

	recent, _ := ring.Recent(ctx, 2)
	if len(recent) != 2 || recent[0].ID != "r-3" || recent[1].ID != "r-2" {
		t.Fatalf("Recent(2) = %+v, want r-3, r-2", recent)
	}

	all, _ := ring.Recent(ctx, 100)
	if len(all) != 3 {
		t.Fatalf("Recent(100) len = %d, want 3", len(all))
	}
}

func TestRingConcurrentAppends(t *testing.T) {
	t.Parallel()

	ring := NewRing(domain.HistoryCapacity)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = ring.Append(ctx, record(i))
		}(i)
	}
	wg.Wait()

	if ring.Len() != domain.HistoryCapacity {
		t.Fatalf("Len() = %d, want %d", ring.Len(), domain.HistoryCapacity)
	}
	recent, _ := ring.Recent(ctx, 0)
	seen := make(map[string]struct{}, len(recent))
	for _, r := range recent {
		if _, dup := seen[r.ID]; dup {
			t.Fatalf("duplicate record %s after concurrent appends", r.ID)
		}
		seen[r.ID] = struct{}{}
	}
}
