package ratelimit

import "context"

// RateLimiter budgets webhook posts per channel id. Wait blocks until a post
// may go out or ctx ends; Allow is the non-blocking variant.
type RateLimiter interface {
	Wait(ctx context.Context, channelID string) error
	Allow(ctx context.Context, channelID string) (bool, error)
}
