// Package solana is a minimal JSON-RPC client for the cluster node. The bot
// only needs it to confirm the node is reachable and caught up.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// ErrUnhealthy is returned when the node answers but reports itself behind.
var ErrUnhealthy = errors.New("solana: node unhealthy")

// Client calls a Solana RPC endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	nextID     atomic.Uint64
}

// NewClient creates a client for rpcURL.
func NewClient(rpcURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:        strings.TrimSpace(rpcURL),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Ping calls getHealth. A node-side error (for example "Node is behind")
// wraps ErrUnhealthy.
func (c *Client) Ping(ctx context.Context) error {
	var status string
	if err := c.call(ctx, "getHealth", nil, &status); err != nil {
		return err
	}
	if status != "ok" {
		return fmt.Errorf("%w: %s", ErrUnhealthy, status)
	}
	return nil
}

// Slot returns the latest slot at the given commitment.
func (c *Client) Slot(ctx context.Context, commitment string) (uint64, error) {
	var params []any
	if commitment != "" {
		params = []any{map[string]string{"commitment": commitment}}
	}
	var slot uint64
	if err := c.call(ctx, "getSlot", params, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("solana: %s: marshal: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("solana: %s: new request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("solana: %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("solana: %s: read body: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("solana: %s: HTTP %d: %s", method, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var rr rpcResponse
	if err := json.Unmarshal(data, &rr); err != nil {
		return fmt.Errorf("solana: %s: decode: %w", method, err)
	}
	if rr.Error != nil {
		return fmt.Errorf("%w: %s: %d %s", ErrUnhealthy, method, rr.Error.Code, rr.Error.Message)
	}
	if err := json.Unmarshal(rr.Result, out); err != nil {
		return fmt.Errorf("solana: %s: decode result: %w", method, err)
	}
	return nil
}
