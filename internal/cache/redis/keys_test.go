package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientKey(t *testing.T) {
	tests := []struct {
		prefix string
		parts  []string
		want   string
	}{
		{"solbot", []string{"lock", "MINT"}, "solbot:lock:MINT"},
		{"", []string{"price", "MINT"}, "price:MINT"},
		{"a:b", []string{"stream", "trades"}, "a:b:stream:trades"},
	}
	for _, tt := range tests {
		c := &Client{prefix: tt.prefix}
		assert.Equal(t, tt.want, c.Key(tt.parts...))
	}
}

func TestComponentKeys(t *testing.T) {
	c := &Client{prefix: "solbot"}
	assert.Equal(t, "solbot:price:MINT", (&PriceCache{client: c}).priceKey("MINT"))
	assert.Equal(t, "solbot:ratelimit:10.0.0.1", (&RateLimiter{client: c}).rateLimitKey("10.0.0.1"))
}

func TestHasPattern(t *testing.T) {
	assert.False(t, hasPattern("candidates"))
	assert.True(t, hasPattern("prices:*"))
	assert.True(t, hasPattern("feed?"))
}

func TestStreamPayload(t *testing.T) {
	b, ok := streamPayload(map[string]any{"payload": `{"id":"1"}`})
	assert.True(t, ok)
	assert.Equal(t, []byte(`{"id":"1"}`), b)

	_, ok = streamPayload(map[string]any{"other": "x"})
	assert.False(t, ok)
}

func TestClientOptions(t *testing.T) {
	opts, err := ClientConfig{Addr: "redis://:pw@cache:6380/2", PoolSize: 7}.options()
	assert.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)

	opts, err = ClientConfig{Addr: "localhost:6379", TLSEnabled: true, DB: 1}.options()
	assert.NoError(t, err)
	assert.Equal(t, 1, opts.DB)
	assert.NotNil(t, opts.TLSConfig)

	_, err = ClientConfig{Addr: "http://nope"}.options()
	assert.Error(t, err)
}

func TestParseQuote(t *testing.T) {
	q, ok := parseQuote("MINT", []any{"0.0012", "1767225600000"})
	assert.True(t, ok)
	assert.Equal(t, "MINT", q.Token)
	assert.Equal(t, "0.0012", q.Price.String())
	assert.Equal(t, int64(1767225600000), q.At.UnixMilli())

	for _, vals := range [][]any{
		{nil, nil},
		{"abc", "1"},
		{"1", "soon"},
		{"1"},
	} {
		_, ok := parseQuote("MINT", vals)
		assert.False(t, ok, "%v", vals)
	}
}
