package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

var _ domain.RateLimiter = (*RateLimiter)(nil)

// admitScript keeps one sorted-set member per admitted request scored by
// its arrival in milliseconds. Members older than the window are dropped
// first. Returns 1 when the request is admitted.
var admitScript = redis.NewScript(`
local now, window, limit = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
if redis.call('ZCARD', KEYS[1]) >= limit then
	return 0
end
redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window)
return 1
`)

// RateLimiter is a sliding-window limiter shared by every bot instance that
// serves the operator API.
type RateLimiter struct {
	client *Client
	now    func() time.Time
}

func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{client: c, now: time.Now}
}

func (rl *RateLimiter) rateLimitKey(key string) string {
	return rl.client.Key("ratelimit", key)
}

// Allow admits and counts one request for key when fewer than limit were
// admitted during the trailing window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	admitted, err := admitScript.Run(ctx, rl.client.Underlying(),
		[]string{rl.rateLimitKey(key)},
		rl.now().UnixMilli(), window.Milliseconds(), limit, uuid.NewString(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	return admitted == 1, nil
}
