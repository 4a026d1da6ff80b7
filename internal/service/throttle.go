package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle limits how often a keyed action may happen.
type Throttle interface {
	// Allow claims key for window. When the key is already held it returns
	// false and the remaining wait.
	Allow(ctx context.Context, key string, window time.Duration) (bool, time.Duration)
	// Release drops a claim so the action may happen again at once.
	Release(ctx context.Context, key string)
}

// RedisThrottle holds one SET NX key per action. A nil client, or any Redis
// error, allows the action so that a Redis outage never blocks sign-up.
type RedisThrottle struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisThrottle(rdb *redis.Client, prefix string) *RedisThrottle {
	if prefix == "" {
		prefix = "throttle"
	}
	return &RedisThrottle{rdb: rdb, prefix: prefix}
}

func (t *RedisThrottle) Allow(ctx context.Context, key string, window time.Duration) (bool, time.Duration) {
	if t == nil || t.rdb == nil || window <= 0 {
		return true, 0
	}
	full := t.prefix + ":" + key
	ok, err := t.rdb.SetNX(ctx, full, 1, window).Result()
	if err != nil {
		slog.WarnContext(ctx, "throttle unavailable, allowing", "key", full, "err", err)
		return true, 0
	}
	if ok {
		return true, 0
	}
	ttl, err := t.rdb.PTTL(ctx, full).Result()
	if err != nil || ttl <= 0 {
		ttl = window
	}
	return false, ttl
}

func (t *RedisThrottle) Release(ctx context.Context, key string) {
	if t == nil || t.rdb == nil {
		return
	}
	full := t.prefix + ":" + key
	if err := t.rdb.Del(ctx, full).Err(); err != nil {
		slog.WarnContext(ctx, "throttle release failed", "key", full, "err", err)
	}
}

func codeThrottleKey(purpose string, userID uint64) string {
	return "code:" + purpose + ":" + uitoa(userID)
}
