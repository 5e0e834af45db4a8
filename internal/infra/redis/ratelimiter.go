package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/broadcast-engine/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 5
	rateLimitKeyPrefix       = "broadcast:ratelimit"
	rateLimitWindow          = time.Second
)

// INCR the window counter, arm its expiry on first use, and report whether the
// caller is still under the limit.
var windowScript = goredis.NewScript(`
local used = redis.call("INCR", KEYS[1])
if used == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if used > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter caps webhook posts per channel in fixed one-second windows.
// The counters live in Redis so API and worker processes share one budget per
// channel webhook.
type RedisRateLimiter struct {
	client        *goredis.Client
	defaultLimit  int64
	channelLimits map[string]int64
	now           func() time.Time
	sleep         func(ctx context.Context, d time.Duration) error
}

type RateLimitOption func(*RedisRateLimiter)

// WithChannelLimit overrides the per-second budget for one channel, e.g. a
// Discord webhook that tolerates fewer posts than the default.
func WithChannelLimit(channelID string, perSec int) RateLimitOption {
	return func(r *RedisRateLimiter) {
		channelID = normalizeChannelID(channelID)
		if channelID == "" || perSec <= 0 {
			return
		}
		r.channelLimits[channelID] = int64(perSec)
	}
}

func NewRedisRateLimiter(client *goredis.Client, limitPerSec int, opts ...RateLimitOption) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	limiter := &RedisRateLimiter{
		client:        client,
		defaultLimit:  int64(limitPerSec),
		channelLimits: make(map[string]int64),
		now:           time.Now,
		sleep:         sleepWithContext,
	}
	if limiter.defaultLimit <= 0 {
		limiter.defaultLimit = defaultLimitPerSec
	}
	for _, opt := range opts {
		opt(limiter)
	}

	return limiter, nil
}

// Allow consumes one slot of the channel's current window.
func (r *RedisRateLimiter) Allow(ctx context.Context, channelID string) (bool, error) {
	if r == nil || r.client == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	channelID = normalizeChannelID(channelID)
	if channelID == "" {
		return false, fmt.Errorf("channel id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	window := r.now().UTC().Truncate(rateLimitWindow)
	key := fmt.Sprintf("%s:%s:%d", rateLimitKeyPrefix, channelID, window.Unix())

	allowed, err := windowScript.Run(ctx, r.client, []string{key}, r.limitFor(channelID), rateLimitWindow.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit for channel %q: %w", channelID, err)
	}

	return allowed == 1, nil
}

// Wait blocks until the channel has budget left, sleeping to the start of the
// next window each time the current one is exhausted.
func (r *RedisRateLimiter) Wait(ctx context.Context, channelID string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		allowed, err := r.Allow(ctx, channelID)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, r.untilNextWindow()); err != nil {
			return err
		}
	}
}

func (r *RedisRateLimiter) limitFor(channelID string) int64 {
	if limit, ok := r.channelLimits[channelID]; ok {
		return limit
	}
	return r.defaultLimit
}

func (r *RedisRateLimiter) untilNextWindow() time.Duration {
	now := r.now().UTC()
	wait := now.Truncate(rateLimitWindow).Add(rateLimitWindow).Sub(now)
	if wait <= 0 {
		return time.Millisecond
	}
	return wait
}

func normalizeChannelID(channelID string) string {
	return strings.ToLower(strings.TrimSpace(channelID))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
