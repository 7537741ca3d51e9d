package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Key patterns:
// - ratelimit:{user_id}:messages  SEND_MESSAGE events
// - ratelimit:{user_id}:sync      HTTP sync reads

// RateLimitConfig contains configuration for rate limiting
type RateLimitConfig struct {
	MessageLimit  int
	MessageWindow time.Duration
	SyncLimit     int
	SyncWindow    time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MessageLimit:  60,
		MessageWindow: time.Minute,
		SyncLimit:     120,
		SyncWindow:    time.Minute,
	}
}

type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: config}
}

// AllowMessage consumes one SEND_MESSAGE slot for userID.
func (r *RateLimiter) AllowMessage(ctx context.Context, userID string) (bool, error) {
	res, err := r.checkLimit(ctx, fmt.Sprintf("ratelimit:%s:messages", userID), r.config.MessageLimit, r.config.MessageWindow)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

func (r *RateLimiter) AllowSync(ctx context.Context, userID string) (*RateLimitResult, error) {
	return r.checkLimit(ctx, fmt.Sprintf("ratelimit:%s:sync", userID), r.config.SyncLimit, r.config.SyncWindow)
}

func (r *RateLimiter) ResetUser(ctx context.Context, userID string) error {
	return r.client.Del(ctx,
		fmt.Sprintf("ratelimit:%s:messages", userID),
		fmt.Sprintf("ratelimit:%s:sync", userID),
	).Err()
}

// Fixed window counter. The window starts at the first hit.
var limitScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')
	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		current = redis.call('INCR', key)
		if current == 1 then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - current, ttl}
	end
	return {0, 0, ttl}
`)

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	if limit <= 0 {
		return &RateLimitResult{Allowed: true, Limit: limit}, nil
	}
	seconds := int(window.Seconds())
	if seconds < 1 {
		seconds = 1
	}

	result, err := limitScript.Run(ctx, r.client, []string{key}, limit, seconds).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(result) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	return &RateLimitResult{
		Allowed:   result[0] == 1,
		Remaining: int(result[1]),
		ResetIn:   time.Duration(result[2]) * time.Second,
		Limit:     limit,
	}, nil
}
