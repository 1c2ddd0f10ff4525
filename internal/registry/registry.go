// Package registry holds open positions keyed by token.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

const shardCount = 32

type shard struct {
	mu        sync.RWMutex
	positions map[string]domain.Position
}

// Registry is a sharded token -> Position map. Reads and writes of
// different tokens rarely contend; callers serialize work on one token
// through a LockManager.
type Registry struct {
	shards [shardCount]*shard
}

// New creates an empty registry.
func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{positions: make(map[string]domain.Position)}
	}
	return r
}

func (r *Registry) shardFor(token string) *shard {
	return r.shards[xxhash.Sum64String(token)%shardCount]
}

// Insert adds a new position. It fails with ErrAlreadyExists if the token
// is already held.
func (r *Registry) Insert(pos domain.Position) error {
	if pos.Token == "" {
		return fmt.Errorf("registry: insert: empty token")
	}
	if pos.PeakPrice.LessThan(pos.EntryPrice) {
		pos.PeakPrice = pos.EntryPrice
	}
	if pos.State == "" {
		pos.State = domain.PositionStateOpen
	}
	s := r.shardFor(pos.Token)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[pos.Token]; ok {
		return fmt.Errorf("registry: insert %s: %w", pos.Token, domain.ErrAlreadyExists)
	}
	s.positions[pos.Token] = pos.Clone()
	return nil
}

// Get returns a copy of the position for token.
func (r *Registry) Get(token string) (domain.Position, bool) {
	s := r.shardFor(token)
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[token]
	if !ok {
		return domain.Position{}, false
	}
	return pos.Clone(), true
}

// Has reports whether token is held.
func (r *Registry) Has(token string) bool {
	s := r.shardFor(token)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.positions[token]
	return ok
}

// UpdatePeak raises the peak price of an open position when price exceeds
// it and returns the updated copy. Closing positions are left untouched.
func (r *Registry) UpdatePeak(token string, price decimal.Decimal) (domain.Position, bool) {
	s := r.shardFor(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[token]
	if !ok {
		return domain.Position{}, false
	}
	if pos.State == domain.PositionStateOpen && price.GreaterThan(pos.PeakPrice) {
		pos.PeakPrice = price
		s.positions[token] = pos
	}
	return pos.Clone(), true
}

// SetState moves a position between open and closing.
func (r *Registry) SetState(token string, state domain.PositionState) error {
	s := r.shardFor(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[token]
	if !ok {
		return fmt.Errorf("registry: set state %s: %w", token, domain.ErrNotFound)
	}
	pos.State = state
	s.positions[token] = pos
	return nil
}

// Remove deletes the position for token and reports whether it existed.
func (r *Registry) Remove(token string) bool {
	s := r.shardFor(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[token]; !ok {
		return false
	}
	delete(s.positions, token)
	return true
}

// List returns copies of all held positions ordered by open time.
func (r *Registry) List() []domain.Position {
	var out []domain.Position
	for _, s := range r.shards {
		s.mu.RLock()
		for _, pos := range s.positions {
			out = append(out, pos.Clone())
		}
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].Token < out[j].Token
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

// Len returns the number of held positions.
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.positions)
		s.mu.RUnlock()
	}
	return n
}
