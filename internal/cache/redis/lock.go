package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/redis/go-redis/v9"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

var _ domain.LockManager = (*LockManager)(nil)

// releaseScript deletes the lock only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// LockManager gives several bot instances sharing one feed exclusive
// per-token evaluation. Locks are SET NX keys holding a random token and
// expire on their own if the holder dies.
type LockManager struct {
	client  *Client
	minWait time.Duration
	maxWait time.Duration
}

func NewLockManager(c *Client) *LockManager {
	return &LockManager{client: c, minWait: 5 * time.Millisecond, maxWait: 250 * time.Millisecond}
}

type lease struct {
	rdb   *redis.Client
	key   string
	token string
	once  sync.Once
}

// release runs at most once and outlives the acquiring context.
func (l *lease) release() {
	l.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err()
	})
}

// TryAcquire makes one attempt and returns domain.ErrLockHeld when someone
// else has the lock.
func (lm *LockManager) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l := &lease{rdb: lm.client.Underlying(), key: lm.client.Key("lock", key), token: uuid.NewString()}
	won, err := l.rdb.SetNX(ctx, l.key, l.token, ttl).Result()
	switch {
	case err != nil:
		return nil, fmt.Errorf("redis: lock %s: %w", key, err)
	case !won:
		return nil, domain.ErrLockHeld
	}
	return l.release, nil
}

// Acquire retries TryAcquire with jittered backoff until it wins or ctx is
// done.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	b := backoff.Backoff{Min: lm.minWait, Max: lm.maxWait, Factor: 2, Jitter: true}
	for {
		unlock, err := lm.TryAcquire(ctx, key, ttl)
		if !errors.Is(err, domain.ErrLockHeld) {
			return unlock, err
		}
		wait := time.NewTimer(b.Duration())
		select {
		case <-ctx.Done():
			wait.Stop()
			return nil, fmt.Errorf("redis: lock %s: %w", key, ctx.Err())
		case <-wait.C:
		}
	}
}
