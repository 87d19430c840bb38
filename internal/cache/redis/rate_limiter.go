package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

const (
	waitPollInterval = 50 * time.Millisecond

	// Wait's built-in limit. Callers needing a different rate drive Allow
	// themselves.
	waitLimit  = 1
	waitWindow = time.Second
)

// RateLimiter is a Redis-backed sliding-window limiter. Each key maps to a
// sorted set of request timestamps; the Lua script prunes, counts and admits
// atomically, so concurrent bot instances share one window.
type RateLimiter struct {
	rdb    *redis.Client
	script *redis.Script
}

var _ domain.RateLimiter = (*RateLimiter)(nil)

func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		rdb:    c.Underlying(),
		script: redis.NewScript(slidingWindowLua),
	}
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}

// Allow admits and counts the request when fewer than limit requests landed
// inside the trailing window, and rejects it otherwise. The unique member is
// generated client-side: Redis reseeds Lua's math.random identically on every
// call, so the script cannot produce one.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := []any{
		time.Now().UnixMicro(),
		window.Microseconds(),
		limit,
		uuid.NewString(),
	}
	res, err := rl.script.Run(ctx, rl.rdb, []string{rateLimitKey(key)}, args...).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	if len(res) != 2 {
		return false, fmt.Errorf("redis: rate limit %s: script returned %d values", key, len(res))
	}
	return res[0] == 1, nil
}

// Wait blocks until the key admits a request at 1 req/s, polling between
// attempts. It returns early when ctx is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()

	for {
		allowed, err := rl.Allow(ctx, key, waitLimit, waitWindow)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}
