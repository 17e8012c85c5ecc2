package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thependalorian/cea-gateway/internal/platform/errors"
)

// RedisLimiter shares one fixed window across gateway replicas. Each key
// holds a counter that expires with the window.
type RedisLimiter struct {
	client    *redis.Client
	prefix    string
	perMinute int
	burst     int
}

// NewRedisLimiter creates a limiter backed by the given Redis client.
func NewRedisLimiter(client *redis.Client, prefix string, perMinute, burst int) (*RedisLimiter, error) {
	if err := validateLimits(perMinute, burst); err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{
		client:    client,
		prefix:    prefix,
		perMinute: perMinute,
		burst:     burst,
	}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := l.prefix + ":" + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, errors.Wrap(errors.KindRateLimit, "ratelimit.incr", "failed to count request", err)
	}
	if count == 1 {
		// First request in the window owns the expiry.
		if err := l.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return false, 0, errors.Wrap(errors.KindRateLimit, "ratelimit.expire", "failed to arm window expiry", err)
		}
	}

	if count <= int64(l.perMinute+l.burst) {
		return true, 0, nil
	}

	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		ttl = window
	}
	return false, retryAfterFor(window - ttl), nil
}
