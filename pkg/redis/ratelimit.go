package redis

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow admits one request when fewer than limit members are in the
// window. Returns {allowed, remaining, retry_after_ms}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window_ms)
local count = redis.call('ZCARD', key)

if count < limit then
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window_ms)
	return {1, limit - count - 1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local retry = window_ms
if oldest[2] then
	retry = tonumber(oldest[2]) + window_ms - now
end
return {0, 0, retry}
`)

// minRetryWait bounds the sleep between two Wait attempts
const minRetryWait = 50 * time.Millisecond

// RateLimiter shares a request budget across processes through a redis
// sorted set per key. Inference providers are limited per minute.
// ⭐ SSOT: 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	prefix string
	now    func() time.Time
	seq    atomic.Uint64
}

// RateLimitConfig defines one budget
type RateLimitConfig struct {
	Key    string        // e.g. "llm:llm7"
	Limit  int           // requests per window, <= 0 means unlimited
	Window time.Duration
}

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix, now: time.Now}
}

// ProviderRateLimit builds the per-minute budget of an inference provider
func ProviderRateLimit(provider string, perMinute int) RateLimitConfig {
	return RateLimitConfig{
		Key:    "llm:" + provider,
		Limit:  perMinute,
		Window: time.Minute,
	}
}

func (r *RateLimiter) key(cfg RateLimitConfig) string {
	return fmt.Sprintf("%s:ratelimit:%s", r.prefix, cfg.Key)
}

// Allow consumes one slot when available.
// A disabled client or a non-positive limit always admits.
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (Decision, error) {
	if !r.client.Enabled() || cfg.Limit <= 0 {
		return Decision{Allowed: true, Remaining: cfg.Limit}, nil
	}

	now := r.now().UnixMilli()
	// 같은 ms 안의 요청도 별도 멤버로 기록
	member := fmt.Sprintf("%d-%d", now, r.seq.Add(1))

	res, err := slidingWindow.Run(ctx, r.client.Redis(), []string{r.key(cfg)},
		now, cfg.Window.Milliseconds(), cfg.Limit, member,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", cfg.Key, err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate limit %s: unexpected reply %v", cfg.Key, res)
	}

	return Decision{
		Allowed:    res[0] == 1,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// Wait blocks until a slot is granted or ctx is done
func (r *RateLimiter) Wait(ctx context.Context, cfg RateLimitConfig) error {
	for {
		d, err := r.Allow(ctx, cfg)
		if err != nil {
			return err
		}
		if d.Allowed {
			return nil
		}

		wait := d.RetryAfter
		if wait < minRetryWait {
			wait = minRetryWait
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
