package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

var _ domain.PriceCache = (*PriceCache)(nil)

// PriceCache keeps each token's last quote in a hash at {prefix}:price:{token}
// holding the decimal price and the observation time in Unix milliseconds.
type PriceCache struct {
	client *Client
	ttl    time.Duration
}

// NewPriceCache returns a cache whose entries expire ttl after their last
// write. Zero keeps them indefinitely.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{client: c, ttl: ttl}
}

func (pc *PriceCache) priceKey(token string) string {
	return pc.client.Key("price", token)
}

func (pc *PriceCache) Put(ctx context.Context, q domain.Quote) error {
	key := pc.priceKey(q.Token)
	_, err := pc.client.Underlying().TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, "price", q.Price.String(), "at", q.At.UnixMilli())
		if pc.ttl > 0 {
			p.PExpire(ctx, key, pc.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: put price %s: %w", q.Token, err)
	}
	return nil
}

// Latest reads every token in one round trip. Entries that are missing or
// unparseable are left out.
func (pc *PriceCache) Latest(ctx context.Context, tokens ...string) (map[string]domain.Quote, error) {
	out := make(map[string]domain.Quote, len(tokens))
	if len(tokens) == 0 {
		return out, nil
	}

	cmds := make([]*redis.SliceCmd, len(tokens))
	_, err := pc.client.Underlying().Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, tok := range tokens {
			cmds[i] = p.HMGet(ctx, pc.priceKey(tok), "price", "at")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis: latest prices: %w", err)
	}

	for i, cmd := range cmds {
		if q, ok := parseQuote(tokens[i], cmd.Val()); ok {
			out[q.Token] = q
		}
	}
	return out, nil
}

func parseQuote(token string, vals []any) (domain.Quote, bool) {
	if len(vals) != 2 {
		return domain.Quote{}, false
	}
	priceStr, ok1 := vals[0].(string)
	atStr, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return domain.Quote{}, false
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return domain.Quote{}, false
	}
	ms, err := strconv.ParseInt(atStr, 10, 64)
	if err != nil {
		return domain.Quote{}, false
	}
	return domain.Quote{Token: token, Price: price, At: time.UnixMilli(ms)}, true
}
