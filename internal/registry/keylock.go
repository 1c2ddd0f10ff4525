package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

var _ domain.LockManager = (*KeyLock)(nil)

type keyEntry struct {
	sem  chan struct{}
	refs int
}

// KeyLock is an in-process LockManager. Waiters for one key queue on a
// single-slot semaphore; entries are dropped once nobody references them.
type KeyLock struct {
	mu   sync.Mutex
	keys map[string]*keyEntry
}

// NewKeyLock creates an empty KeyLock.
func NewKeyLock() *KeyLock {
	return &KeyLock{keys: make(map[string]*keyEntry)}
}

// Acquire blocks until key is held or ctx is done. The ttl is accepted for
// interface compatibility; in-process holders always release explicitly.
func (k *KeyLock) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	k.mu.Lock()
	e, ok := k.keys[key]
	if !ok {
		e = &keyEntry{sem: make(chan struct{}, 1)}
		k.keys[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		k.deref(key, e)
		return nil, fmt.Errorf("keylock: acquire %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			k.deref(key, e)
		})
	}, nil
}

func (k *KeyLock) deref(key string, e *keyEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.keys, key)
	}
}

// size is the number of tracked keys.
func (k *KeyLock) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.keys)
}
