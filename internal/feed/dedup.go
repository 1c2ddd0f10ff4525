package feed

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Dedup drops keys already seen within ttl. At-least-once delivery from
// the stream poller and pub/sub can overlap; this keeps the engine from
// seeing the same message twice. Candidates key on the raw payload, prices
// on token and observed_at. Safe for concurrent use.
type Dedup struct {
	mu   sync.Mutex
	seen map[uint64]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[uint64]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Seen records key and reports whether it was already present and
// unexpired. A zero ttl disables deduplication.
func (d *Dedup) Seen(channel string, key []byte) bool {
	if d == nil || d.ttl <= 0 {
		return false
	}
	h := xxhash.New()
	_, _ = h.WriteString(channel)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(key)
	sum := h.Sum64()

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.seen[sum]; ok && now.Sub(last) < d.ttl {
		return true
	}
	d.seen[sum] = now
	return false
}

// Cleanup drops expired entries. Call periodically.
func (d *Dedup) Cleanup() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	n := 0
	for k, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, k)
			n++
		}
	}
	return n
}

func (d *Dedup) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
