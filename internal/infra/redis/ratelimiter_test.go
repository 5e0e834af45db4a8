package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, now *time.Time, limitPerSec int, opts ...RateLimitOption) *RedisRateLimiter {
	t.Helper()

	limiter, err := NewRedisRateLimiter(newTestRedisClient(t), limitPerSec, opts...)
	if err != nil {
		t.Fatalf("NewRedisRateLimiter() error = %v", err)
	}
	limiter.now = func() time.Time { return *now }
	return limiter
}

func mustAllow(t *testing.T, limiter *RedisRateLimiter, channelID string) bool {
	t.Helper()

	allowed, err := limiter.Allow(context.Background(), channelID)
	if err != nil {
		t.Fatalf("Allow(%s) error = %v", channelID, err)
	}
	return allowed
}

func TestRedisRateLimiterAllowWindow(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 200_000_000)
	limiter := newTestLimiter(t, &now, 2)

	if !mustAllow(t, limiter, "slack") || !mustAllow(t, limiter, "slack") {
		t.Fatal("first two posts in the window should be allowed")
	}
	if mustAllow(t, limiter, "slack") {
		t.Fatal("third post should exceed the budget")
	}

	now = now.Add(500 * time.Millisecond)
	if mustAllow(t, limiter, "slack") {
		t.Fatal("same second must share the exhausted window")
	}

	now = now.Add(400 * time.Millisecond)
	if !mustAllow(t, limiter, "slack") {
		t.Fatal("next window should allow the post")
	}
}

func TestRedisRateLimiterChannelsAreIndependent(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_100, 0)
	limiter := newTestLimiter(t, &now, 1)

	if !mustAllow(t, limiter, "slack") {
		t.Fatal("slack should be allowed on first post")
	}
	if !mustAllow(t, limiter, "discord") {
		t.Fatal("discord has its own budget")
	}
	if mustAllow(t, limiter, " SLACK ") {
		t.Fatal("channel ids are normalized, slack budget is spent")
	}
}

func TestRedisRateLimiterChannelOverride(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_150, 0)
	limiter := newTestLimiter(t, &now, 1,
		WithChannelLimit("Telegram", 3),
		WithChannelLimit("discord", 0),
	)

	for i := 0; i < 3; i++ {
		if !mustAllow(t, limiter, "telegram") {
			t.Fatalf("telegram post %d should be allowed by override", i+1)
		}
	}
	if mustAllow(t, limiter, "telegram") {
		t.Fatal("fourth telegram post should be limited")
	}

	if got := limiter.limitFor("discord"); got != 1 {
		t.Fatalf("discord limit = %d, want default 1 for non-positive override", got)
	}
}

func TestRedisRateLimiterWaitSleepsToNextWindow(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_200, 750_000_000)
	limiter := newTestLimiter(t, &now, 1)

	var slept []time.Duration
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		now = now.Add(d)
		return nil
	}

	if !mustAllow(t, limiter, "telegram") {
		t.Fatal("expected first post to be allowed")
	}
	if err := limiter.Wait(context.Background(), "telegram"); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if len(slept) != 1 || slept[0] != 250*time.Millisecond {
		t.Fatalf("slept = %v, want one 250ms sleep", slept)
	}
}

func TestRedisRateLimiterWaitContextDeadline(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_300, 0)
	limiter := newTestLimiter(t, &now, 1)

	if !mustAllow(t, limiter, "slack") {
		t.Fatal("expected first post to be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx, "slack")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestRedisRateLimiterDefaultsAndValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisRateLimiter(nil, 1); err == nil {
		t.Fatal("expected error for nil client")
	}

	limiter, err := NewRedisRateLimiter(newTestRedisClient(t), 0)
	if err != nil {
		t.Fatalf("NewRedisRateLimiter() error = %v", err)
	}
	if limiter.defaultLimit != defaultLimitPerSec {
		t.Fatalf("defaultLimit = %d, want %d", limiter.defaultLimit, defaultLimitPerSec)
	}

	if _, err := limiter.Allow(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank channel id")
	}
}

func newTestRedisClient(t *testing.T) *goredis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return rdb
}
