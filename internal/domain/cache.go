package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the last observed price of a token.
type Quote struct {
	Token string
	Price decimal.Decimal
	At    time.Time
}

// PriceCache remembers the latest quote per token. Latest omits tokens it
// has no quote for.
type PriceCache interface {
	Put(ctx context.Context, q Quote) error
	Latest(ctx context.Context, tokens ...string) (map[string]Quote, error)
}

// LockManager serializes work per key. Acquire blocks until the lock is
// held or ctx is done; the lock lapses after ttl if never released.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage is one durable stream entry.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus is the event transport: fire-and-forget channels for the live
// feeds and replayable streams for history.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream, lastID string, count int) ([]StreamMessage, error)
}

// RateLimiter admits at most limit calls per key in any trailing window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
