// Package sentinel is the HTTP client for the external risk scorer and
// creator-wallet graph.
package sentinel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/engine"
)

// Client talks to the sentinel service. Every call honours ctx; the engine
// bounds them with its prediction budget.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var (
	_ engine.RiskScorer   = (*Client)(nil)
	_ engine.CreatorGraph = (*Client)(nil)
)

// NewClient creates a client for baseURL, e.g. "http://sentinel:8090".
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type scoreResponse struct {
	Score *float64 `json:"score"`
}

type breakoutResponse struct {
	Breakout *bool `json:"breakout"`
}

type creatorsResponse struct {
	Addresses []string `json:"addresses"`
}

type sellingRequest struct {
	Addresses []string `json:"addresses"`
}

type sellingResponse struct {
	Selling *bool `json:"selling"`
}

// Score returns the token's trust score in [0, 1].
func (c *Client) Score(ctx context.Context, token string) (float64, error) {
	var resp scoreResponse
	if err := c.do(ctx, http.MethodGet, tokenPath(token, "score"), nil, &resp); err != nil {
		return 0, fmt.Errorf("sentinel: score %s: %w", token, err)
	}
	if resp.Score == nil {
		return 0, fmt.Errorf("sentinel: score %s: missing score", token)
	}
	s := *resp.Score
	if s < 0 || s > 1 {
		return 0, fmt.Errorf("sentinel: score %s: %v out of range", token, s)
	}
	return s, nil
}

// PredictedBreakout asks whether the token is expected to move up from price.
func (c *Client) PredictedBreakout(ctx context.Context, token string, price decimal.Decimal) (bool, error) {
	q := url.Values{}
	q.Set("price", price.String())
	var resp breakoutResponse
	if err := c.do(ctx, http.MethodGet, tokenPath(token, "breakout")+"?"+q.Encode(), nil, &resp); err != nil {
		return false, fmt.Errorf("sentinel: breakout %s: %w", token, err)
	}
	if resp.Breakout == nil {
		return false, fmt.Errorf("sentinel: breakout %s: missing verdict", token)
	}
	return *resp.Breakout, nil
}

// AssociatedAddresses returns wallets linked to the token's creator.
func (c *Client) AssociatedAddresses(ctx context.Context, token string) ([]string, error) {
	var resp creatorsResponse
	if err := c.do(ctx, http.MethodGet, tokenPath(token, "creators"), nil, &resp); err != nil {
		return nil, fmt.Errorf("sentinel: creators %s: %w", token, err)
	}
	return resp.Addresses, nil
}

// IsSelling reports whether any of addresses is dumping the token.
func (c *Client) IsSelling(ctx context.Context, token string, addresses []string) (bool, error) {
	if addresses == nil {
		addresses = []string{}
	}
	var resp sellingResponse
	if err := c.do(ctx, http.MethodPost, tokenPath(token, "selling"), sellingRequest{Addresses: addresses}, &resp); err != nil {
		return false, fmt.Errorf("sentinel: selling %s: %w", token, err)
	}
	if resp.Selling == nil {
		return false, fmt.Errorf("sentinel: selling %s: missing verdict", token)
	}
	return *resp.Selling, nil
}

func tokenPath(token, op string) string {
	return "/v1/tokens/" + url.PathEscape(token) + "/" + op
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, data); err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	msg := strings.TrimSpace(string(body))
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, msg)
	}
}
