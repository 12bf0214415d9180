package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter enforces the same fixed-window scheme as MemoryLimiter but
// keeps counters in Redis, so a multi-instance deployment shares one budget
// per key. The window is an INCR + PEXPIRE pair: the first request in a
// window creates the counter and stamps its expiry.
//
// Check never fails: on a Redis error the limiter logs and fails open.
// Denying all submissions because the cache is down would turn a soft limit
// into an outage.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger *slog.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a Redis-backed fixed-window limiter.
func NewRedisLimiter(client *redis.Client, limit int, windowDuration time.Duration, logger *slog.Logger) *RedisLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: windowDuration,
		logger: logger,
	}
}

func (l *RedisLimiter) Check(ctx context.Context, key Key) Decision {
	redisKey := fmt.Sprintf("ratelimit:%s:%s", key.Bucket, key.Identity)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		l.logger.Warn("rate limiter unavailable, failing open", "error", err)
		return Decision{Allowed: true, Remaining: l.limit, ResetAt: time.Now().Add(l.window)}
	}

	if count == 1 {
		if err := l.client.PExpire(ctx, redisKey, l.window).Err(); err != nil {
			l.logger.Warn("failed to set rate limit window expiry", "key", redisKey, "error", err)
		}
	}

	ttl, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil || ttl < 0 {
		ttl = l.window
	}
	resetAt := time.Now().Add(ttl)

	if count > int64(l.limit) {
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}

	remaining := l.limit - int(count)
	return Decision{Allowed: true, Remaining: remaining, ResetAt: resetAt}
}
