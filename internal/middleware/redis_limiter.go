package middleware

import (
	"context"
	"fmt"
	"time"

	"ascii-arena/internal/metrics"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// slidingWindowScript keeps one sorted-set member per accepted request,
// scored by its time in milliseconds. Returns {allowed, remaining, resetMs}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count < limit then
	redis.call('ZADD', key, now, ARGV[4])
	redis.call('PEXPIRE', key, window)
	return {1, limit - count - 1, now + window}
end

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
	reset = tonumber(oldest[2]) + window
end
return {0, 0, reset}
`)

// RedisLimiter is a sliding-window limiter shared by every instance through
// Redis. Redis failures trip a circuit breaker and decisions fall back to a
// local MemoryLimiter until Redis recovers.
type RedisLimiter struct {
	client   redis.UniversalClient
	config   RateLimitConfig
	prefix   string
	breaker  *gobreaker.CircuitBreaker
	fallback Limiter
	metrics  *metrics.Metrics

	now       func() time.Time
	newMember func() string
}

func NewRedisLimiter(client redis.UniversalClient, config RateLimitConfig, prefix string, fallback Limiter, m *metrics.Metrics) *RedisLimiter {
	return &RedisLimiter{
		client:   client,
		config:   config,
		prefix:   prefix,
		fallback: fallback,
		metrics:  m,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "redis-ratelimit",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			},
		}),
		now:       time.Now,
		newMember: uuid.NewString,
	}
}

func (l *RedisLimiter) key(key string) string {
	return l.prefix + ":" + key
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := l.breaker.Execute(func() (interface{}, error) {
		return l.check(ctx, key)
	})
	if err != nil {
		if l.metrics != nil {
			l.metrics.LimiterErrors.Inc()
		}
		log.Warn().Err(err).Msg("redis rate limiter unavailable, using local limiter")
		return l.fallback.Allow(ctx, key)
	}
	return res.(Decision), nil
}

func (l *RedisLimiter) check(ctx context.Context, key string) (Decision, error) {
	now := l.now().UnixMilli()
	window := l.config.Window.Milliseconds()

	raw, err := slidingWindowScript.Run(ctx, l.client,
		[]string{l.key(key)},
		now, window, l.config.MaxRequests, l.newMember(),
	).Result()
	if err != nil {
		return Decision{}, err
	}

	vals, ok := raw.([]interface{})
	if !ok || len(vals) != 3 {
		return Decision{}, fmt.Errorf("unexpected rate limit reply %v", raw)
	}
	nums := make([]int64, 3)
	for i, v := range vals {
		n, ok := v.(int64)
		if !ok {
			return Decision{}, fmt.Errorf("unexpected rate limit reply %v", raw)
		}
		nums[i] = n
	}

	return Decision{
		Allowed:   nums[0] == 1,
		Limit:     l.config.MaxRequests,
		Remaining: int(nums[1]),
		ResetAt:   time.UnixMilli(nums[2]),
	}, nil
}
