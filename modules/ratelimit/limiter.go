package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidWindow is returned for windows shorter than one millisecond.
var ErrInvalidWindow = errors.New("rate limit window must be at least 1ms")

// slidingWindow keeps one sorted-set entry per accepted request, scored by
// its timestamp in milliseconds. Returns {allowed, remaining, resetAtMs}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local window = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local ttl = math.ceil(window / 1000)

if count >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local reset = 0
	if #oldest == 2 then
		reset = tonumber(oldest[2]) + window
	end
	return {0, 0, reset}
end

local seq = redis.call('INCR', key .. ':seq')
redis.call('ZADD', key, now, now .. '-' .. seq)
redis.call('EXPIRE', key, ttl)
redis.call('EXPIRE', key .. ':seq', ttl)
return {1, limit - count - 1, 0}
`)

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// Limiter is a Redis-backed sliding window rate limiter.
type Limiter struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewLimiter creates a limiter storing its windows under keyPrefix.
func NewLimiter(client redis.UniversalClient, keyPrefix string) *Limiter {
	return &Limiter{client: client, keyPrefix: keyPrefix}
}

// Allow records one request for key if fewer than limit were accepted
// during the last window.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if window.Milliseconds() <= 0 {
		return nil, ErrInvalidWindow
	}
	now := time.Now()

	reply, err := slidingWindow.Run(ctx, l.client, []string{l.keyPrefix + key},
		now.UnixMilli(), limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(reply) != 3 {
		return nil, fmt.Errorf("rate limit script: unexpected reply length %d", len(reply))
	}

	res := &Result{
		Allowed:   reply[0] == 1,
		Remaining: int(reply[1]),
		ResetAt:   now.Add(window),
		Limit:     limit,
	}
	if reply[2] > 0 {
		res.ResetAt = time.UnixMilli(reply[2])
	}
	return res, nil
}

// Reset forgets every request recorded for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	k := l.keyPrefix + key
	return l.client.Del(ctx, k, k+":seq").Err()
}
