package sentinel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "secret", time.Second)
}

func TestClient_Score(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tokens/MINT/score", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"score":0.82}`))
	})

	s, err := c.Score(context.Background(), "MINT")
	require.NoError(t, err)
	assert.InDelta(t, 0.82, s, 1e-9)
}

func TestClient_ScoreRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing", `{}`},
		{"above one", `{"score":1.5}`},
		{"negative", `{"score":-0.1}`},
		{"not json", `oops`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Score(context.Background(), "MINT")
			assert.Error(t, err)
		})
	}
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := c.Score(context.Background(), "MINT")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_PredictedBreakout(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tokens/MINT/breakout", r.URL.Path)
		assert.Equal(t, "0.0025", r.URL.Query().Get("price"))
		_, _ = w.Write([]byte(`{"breakout":true}`))
	})

	ok, err := c.PredictedBreakout(context.Background(), "MINT", decimal.RequireFromString("0.0025"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClient_CreatorGraph(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/tokens/MINT/creators":
			_, _ = w.Write([]byte(`{"addresses":["w1","w2"]}`))
		case "/v1/tokens/MINT/selling":
			assert.Equal(t, http.MethodPost, r.Method)
			var req sellingRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, []string{"w1", "w2"}, req.Addresses)
			_, _ = w.Write([]byte(`{"selling":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	addrs, err := c.AssociatedAddresses(context.Background(), "MINT")
	require.NoError(t, err)
	assert.Equal(t, []string{"w1", "w2"}, addrs)

	selling, err := c.IsSelling(context.Background(), "MINT", addrs)
	require.NoError(t, err)
	assert.True(t, selling)
}

func TestClient_HonoursContext(t *testing.T) {
	block := make(chan struct{})
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Score(ctx, "MINT")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStatic(t *testing.T) {
	s := Static{TrustScore: 0.9, Breakout: true}
	score, err := s.Score(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 0.9, score)

	selling, err := s.IsSelling(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.False(t, selling)
}
