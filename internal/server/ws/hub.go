// Package ws streams executed trades and periodic engine status to operator
// dashboards over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/journal"
)

// Topics a client can subscribe to.
const (
	TopicTrade  = "trade"
	TopicStatus = "bot_status"
)

// TradeFeed is the journal subscription the hub reads from.
type TradeFeed interface {
	Subscribe(name string, buffer int) (<-chan domain.TradeRecord, func())
}

// StatusSource supplies the periodic status payload.
type StatusSource interface {
	Status() domain.BotStatus
}

// Config controls the status cadence.
type Config struct {
	StatusInterval time.Duration
	StartedAt      time.Time
}

// frame is every message sent to clients.
type frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type statusPayload struct {
	Mode             string `json:"mode"`
	Simulation       bool   `json:"simulation"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	OpenPositions    int    `json:"open_positions"`
	AvailableCapital string `json:"available_capital"`
}

// Hub fans journal records and status snapshots out to connected clients.
// A client that cannot keep up is disconnected rather than silently
// skipping trades.
type Hub struct {
	trades   TradeFeed
	status   StatusSource
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	stopped bool
}

// NewHub creates a hub. status may be nil, which disables status frames.
func NewHub(trades TradeFeed, status StatusSource, cfg Config, logger *slog.Logger) *Hub {
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now().UTC()
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 10 * time.Second
	}
	return &Hub{
		trades: trades,
		status: status,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "ws_hub")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The API key gates /ws; dashboards may be served from anywhere.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Run forwards trades and status ticks until ctx is done, then disconnects
// every client.
func (h *Hub) Run(ctx context.Context) error {
	trades, cancel := h.trades.Subscribe("ws", sendBuffer)
	defer cancel()

	var tick <-chan time.Time
	if h.status != nil {
		t := time.NewTicker(h.cfg.StatusInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			h.stop()
			return nil
		case rec, ok := <-trades:
			if !ok {
				h.stop()
				return nil
			}
			h.broadcast(TopicTrade, journal.ToEntry(rec))
		case <-tick:
			h.broadcast(TopicStatus, h.snapshot())
		}
	}
}

func (h *Hub) broadcast(topic string, payload any) {
	data, err := json.Marshal(frame{Type: topic, Payload: payload})
	if err != nil {
		h.logger.Error("ws: encode frame", slog.String("topic", topic), slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.wants(topic) {
			continue
		}
		if !c.offer(data) {
			h.logger.Warn("ws: client too slow, disconnecting", slog.String("remote", c.remote))
			h.dropLocked(c)
		}
	}
}

func (h *Hub) snapshot() statusPayload {
	p := statusPayload{UptimeSeconds: max(int64(time.Since(h.cfg.StartedAt).Seconds()), 0)}
	if h.status != nil {
		s := h.status.Status()
		p.Mode = s.Mode
		p.Simulation = s.Simulation
		p.OpenPositions = s.OpenPositions
		p.AvailableCapital = s.AvailableCapital.String()
	}
	return p
}

// HandleWS upgrades the request. ?topics=trade,bot_status narrows the
// initial subscription; both topics are on by default.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	topics := []string{TopicTrade, TopicStatus}
	if q := r.URL.Query().Get("topics"); q != "" {
		topics = strings.Split(q, ",")
	}
	c := newClient(conn, topics)

	// The first frame is always a status so the dashboard can mark the
	// connection live before any trade flows.
	if data, err := json.Marshal(frame{Type: TopicStatus, Payload: h.snapshot()}); err == nil {
		c.offer(data)
	}

	if !h.add(c) {
		_ = conn.Close()
		return
	}
	go c.writeLoop()
	go func() {
		c.readLoop(h.logger)
		h.drop(c)
	}()
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Info("ws: client connected", slog.String("remote", c.remote), slog.Int("clients", len(h.clients)))
	return true
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

// dropLocked closes c's queue, which ends its write loop. Caller holds h.mu.
func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.queue)
	h.logger.Info("ws: client disconnected", slog.String("remote", c.remote), slog.Int("clients", len(h.clients)))
}

func (h *Hub) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
