package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

var _ domain.SignalBus = (*SignalBus)(nil)

// defaultStreamMaxLen bounds each stream through XADD MAXLEN ~.
const defaultStreamMaxLen int64 = 10000

// payloadField is the stream entry field carrying the message body.
const payloadField = "payload"

// SignalBus carries the candidate and price feeds over pub/sub and the
// durable trade stream over Redis Streams. Stream keys take the client
// prefix; pub/sub channels belong to the ingestion side and are used
// verbatim.
type SignalBus struct {
	client *Client
	maxLen int64
}

func NewSignalBus(c *Client) *SignalBus {
	return NewSignalBusWithMaxLen(c, 0)
}

// NewSignalBusWithMaxLen trims streams to about maxLen entries. Zero or
// less keeps the default.
func NewSignalBusWithMaxLen(c *Client, maxLen int64) *SignalBus {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &SignalBus{client: c, maxLen: maxLen}
}

func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.client.Underlying().Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe listens on channel, or on a pattern when channel holds glob
// characters. The returned channel closes once ctx is done.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	rdb := sb.client.Underlying()
	sub := rdb.Subscribe
	if hasPattern(channel) {
		sub = rdb.PSubscribe
	}
	ps := sub(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go forward(ctx, ps, out)
	return out, nil
}

func forward(ctx context.Context, ps *redis.PubSub, out chan<- []byte) {
	defer close(out)
	defer ps.Close()
	in := ps.Channel()
	for {
		var msg *redis.Message
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			msg = m
		}
		select {
		case out <- []byte(msg.Payload):
		case <-ctx.Done():
			return
		}
	}
}

func hasPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}

func (sb *SignalBus) streamKey(stream string) string {
	return sb.client.Key("stream", stream)
}

func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	err := sb.client.Underlying().XAdd(ctx, &redis.XAddArgs{
		Stream: sb.streamKey(stream),
		MaxLen: sb.maxLen,
		Approx: true,
		Values: []any{payloadField, payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: xadd %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count entries after lastID without blocking.
// "0" reads from the start. An empty stream yields no messages and no
// error.
func (sb *SignalBus) StreamRead(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	res, err := sb.client.Underlying().XRead(ctx, &redis.XReadArgs{
		Streams: []string{sb.streamKey(stream), lastID},
		Count:   int64(count),
		Block:   -1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: xread %s: %w", stream, err)
	}

	var msgs []domain.StreamMessage
	for _, s := range res {
		for _, x := range s.Messages {
			if body, ok := streamPayload(x.Values); ok {
				msgs = append(msgs, domain.StreamMessage{ID: x.ID, Payload: body})
			}
		}
	}
	return msgs, nil
}

// streamPayload extracts the payload field; entries written by other
// producers without it are skipped.
func streamPayload(values map[string]any) ([]byte, bool) {
	switch v := values[payloadField].(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	default:
		return nil, false
	}
}
