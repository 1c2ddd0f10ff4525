// Package journal is the append-only record of executed trades and the
// stream observers subscribe to.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/metrics"
)

// Appender persists trade records. Implementations must only ever append.
type Appender interface {
	Append(ctx context.Context, rec domain.TradeRecord) error
}

// Loader reads back previously persisted records.
type Loader interface {
	Load(ctx context.Context) ([]domain.TradeRecord, error)
}

type subscriber struct {
	name string
	ch   chan domain.TradeRecord
}

// Journal fans every recorded trade out to its sinks, an in-memory history
// and any number of subscribers. Publishing never blocks: a subscriber whose
// buffer is full misses the record and the drop is counted.
type Journal struct {
	sinks   []Appender
	metrics *metrics.Registry
	logger  *slog.Logger

	mu         sync.RWMutex
	history    []domain.TradeRecord
	historyCap int
	pnl        *Tracker
	subs       map[int]*subscriber
	nextSub    int
}

// New creates a journal keeping at most historyCap records in memory.
func New(historyCap int, m *metrics.Registry, logger *slog.Logger, sinks ...Appender) *Journal {
	if historyCap <= 0 {
		historyCap = 1000
	}
	return &Journal{
		sinks:      sinks,
		metrics:    m,
		logger:     logger.With(slog.String("component", "journal")),
		historyCap: historyCap,
		pnl:        NewTracker(),
		subs:       make(map[int]*subscriber),
	}
}

// Seed restores history and realized P&L from persisted records without
// re-appending them or notifying subscribers.
func (j *Journal) Seed(records []domain.TradeRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, rec := range records {
		j.remember(rec)
	}
}

// Record appends rec to every sink, then publishes it. A sink failure is
// returned after the record has still been published; the trade happened.
func (j *Journal) Record(ctx context.Context, rec domain.TradeRecord) error {
	var errs []error
	for _, s := range j.sinks {
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}

	// Sends never block; cancel closes channels under the same lock.
	j.mu.Lock()
	j.remember(rec)
	for _, s := range j.subs {
		select {
		case s.ch <- rec:
		default:
			j.metrics.ObserveJournalDrop(s.name)
			j.logger.Warn("subscriber full, dropping trade record",
				slog.String("subscriber", s.name),
				slog.String("token", rec.Token),
				slog.String("action", string(rec.Action)),
			)
		}
	}
	j.mu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("journal: record %s: %w", rec.ID, errors.Join(errs...))
	}
	return nil
}

func (j *Journal) remember(rec domain.TradeRecord) {
	j.history = append(j.history, rec)
	if over := len(j.history) - j.historyCap; over > 0 {
		j.history = append(j.history[:0:0], j.history[over:]...)
	}
	j.pnl.Add(rec)
}

// Subscribe returns a buffered stream of future records and a cancel func
// that closes it.
func (j *Journal) Subscribe(name string, buffer int) (<-chan domain.TradeRecord, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	s := &subscriber{name: name, ch: make(chan domain.TradeRecord, buffer)}

	j.mu.Lock()
	id := j.nextSub
	j.nextSub++
	j.subs[id] = s
	j.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			j.mu.Lock()
			delete(j.subs, id)
			close(s.ch)
			j.mu.Unlock()
		})
	}
}

// Recent returns up to limit of the newest records, newest last.
func (j *Journal) Recent(limit int) []domain.TradeRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()
	n := len(j.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.TradeRecord, limit)
	copy(out, j.history[n-limit:])
	return out
}

// PnL returns realized profit and loss over every record seen.
func (j *Journal) PnL() PnL {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.pnl.Snapshot()
}
