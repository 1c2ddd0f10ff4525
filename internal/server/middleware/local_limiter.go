package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// LocalLimiter is an in-process domain.RateLimiter for single-instance
// deployments without Redis. Each key gets a token bucket refilling limit
// tokens per window.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*localEntry
	idle     time.Duration
	now      func() time.Time
}

type localEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

var _ domain.RateLimiter = (*LocalLimiter)(nil)

// NewLocalLimiter creates a limiter that forgets keys idle for longer than
// idle.
func NewLocalLimiter(idle time.Duration) *LocalLimiter {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &LocalLimiter{
		limiters: make(map[string]*localEntry),
		idle:     idle,
		now:      time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.limiters[key]
	if !ok {
		every := rate.Every(window / time.Duration(limit))
		e = &localEntry{lim: rate.NewLimiter(every, limit)}
		l.limiters[key] = e
	}
	e.seen = now
	l.sweep(now)
	return e.lim.AllowN(now, 1), nil
}

// sweep drops idle keys. Caller holds l.mu.
func (l *LocalLimiter) sweep(now time.Time) {
	if len(l.limiters) < 1024 {
		return
	}
	for k, e := range l.limiters {
		if now.Sub(e.seen) > l.idle {
			delete(l.limiters, k)
		}
	}
}
