package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter bounds per-viewer reaction throughput to keep one viewer from
// flooding the broadcast channel.
type RateLimiter interface {
	Allow(ctx context.Context, sessionID, userID uuid.UUID) (bool, error)
}

// RedisRateLimiter implements a fixed-window counter per (session, viewer).
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisRateLimiter creates a limiter allowing limit events per window.
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limit: limit, window: window}
}

// Allow reports whether one more event fits in the current window.
func (r *RedisRateLimiter) Allow(ctx context.Context, sessionID, userID uuid.UUID) (bool, error) {
	key := fmt.Sprintf("live:ratelimit:%s:%s", sessionID, userID)
	pipe := r.client.TxPipeline()
	count := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return count.Val() <= int64(r.limit), nil
}
