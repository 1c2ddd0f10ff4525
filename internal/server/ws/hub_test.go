package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

type chanFeed chan domain.TradeRecord

func (f chanFeed) Subscribe(string, int) (<-chan domain.TradeRecord, func()) {
	return f, func() {}
}

type fixedStatus domain.BotStatus

func (s fixedStatus) Status() domain.BotStatus { return domain.BotStatus(s) }

func dial(t *testing.T, url, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http")+"/"+query, nil)
	require.NoError(t, err)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	var f struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&f))
	return f.Type, f.Payload
}

func TestHub_TopicsAndStatus(t *testing.T) {
	feed := make(chanFeed, 4)
	status := fixedStatus{Mode: "simulation", Simulation: true, OpenPositions: 2, AvailableCapital: decimal.RequireFromString("0.04")}
	h := NewHub(feed, status, Config{StatusInterval: time.Hour}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	ts := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer ts.Close()

	statusOnly := dial(t, ts.URL, "?topics=bot_status")
	defer statusOnly.Close()
	all := dial(t, ts.URL, "")
	defer all.Close()

	typ, payload := readFrame(t, statusOnly)
	assert.Equal(t, TopicStatus, typ)
	var sp statusPayload
	require.NoError(t, json.Unmarshal(payload, &sp))
	assert.Equal(t, 2, sp.OpenPositions)
	assert.Equal(t, "0.04", sp.AvailableCapital)

	typ, _ = readFrame(t, all)
	assert.Equal(t, TopicStatus, typ)

	require.Eventually(t, func() bool { return h.Clients() == 2 }, time.Second, 5*time.Millisecond)
	feed <- domain.TradeRecord{ID: "t1", Token: "MINT", Action: domain.TradeActionBuy, Timestamp: time.Now()}

	typ, payload = readFrame(t, all)
	assert.Equal(t, TopicTrade, typ)
	assert.Contains(t, string(payload), `"MINT"`)

	// The status-only client sees nothing further.
	require.NoError(t, statusOnly.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := statusOnly.ReadMessage()
	assert.Error(t, err)

	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, h.Clients())
}

func TestClient_Apply(t *testing.T) {
	c := &client{topics: map[string]bool{TopicTrade: true}}
	c.apply(control{Action: "subscribe", Channels: []string{TopicStatus}})
	c.apply(control{Action: "unsubscribe", Channels: []string{TopicTrade}})
	c.apply(control{Action: "bogus", Channels: []string{"x"}})
	assert.True(t, c.wants(TopicStatus))
	assert.False(t, c.wants(TopicTrade))
	assert.False(t, c.wants("x"))
}

func TestClient_OfferFull(t *testing.T) {
	c := &client{queue: make(chan []byte, 1)}
	assert.True(t, c.offer([]byte("a")))
	assert.False(t, c.offer([]byte("b")))
}
