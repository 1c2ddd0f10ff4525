package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jpillora/backoff"
)

// poster sends JSON webhooks and retries when the service answers 429.
type poster struct {
	client   *http.Client
	attempts int
	minWait  time.Duration
	maxWait  time.Duration
}

func newPoster() poster {
	return poster{
		client:   &http.Client{Timeout: 10 * time.Second},
		attempts: 3,
		minWait:  250 * time.Millisecond,
		maxWait:  5 * time.Second,
	}
}

func (p poster) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	b := &backoff.Backoff{Min: p.minWait, Max: p.maxWait, Factor: 2, Jitter: true}
	for attempt := 1; ; attempt++ {
		wait, err := p.once(ctx, url, body)
		if err == nil {
			return nil
		}
		if wait < 0 || attempt >= p.attempts {
			return err
		}
		if wait == 0 {
			wait = b.Duration()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(wait, p.maxWait)):
		}
	}
}

// once performs one request. A non-negative wait marks the failure as
// retryable; zero means no hint was given.
func (p poster) once(ctx context.Context, url string, body []byte) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return -1, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return -1, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	if resp.StatusCode != http.StatusTooManyRequests {
		return -1, err
	}
	if secs, perr := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); perr == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second)), err
	}
	return 0, err
}
