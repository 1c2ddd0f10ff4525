package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newPos(token, entry string) domain.Position {
	return domain.Position{
		Token:      token,
		EntryPrice: d(entry),
		Size:       d("0.01"),
		OpenedAt:   time.Now(),
	}
}

func TestInsertRejectsDuplicate(t *testing.T) {
	r := New()
	require.NoError(t, r.Insert(newPos("MINT1", "1")))
	err := r.Insert(newPos("MINT1", "2"))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Equal(t, 1, r.Len())

	got, ok := r.Get("MINT1")
	require.True(t, ok)
	assert.True(t, got.EntryPrice.Equal(d("1")))
	assert.True(t, got.PeakPrice.Equal(d("1")), "peak starts at entry")
	assert.Equal(t, domain.PositionStateOpen, got.State)
}

func TestUpdatePeakIsMonotonic(t *testing.T) {
	r := New()
	require.NoError(t, r.Insert(newPos("MINT1", "1")))

	for _, p := range []string{"1.5", "1.9", "1.55", "1.2"} {
		r.UpdatePeak("MINT1", d(p))
	}
	got, _ := r.Get("MINT1")
	assert.True(t, got.PeakPrice.Equal(d("1.9")))

	require.NoError(t, r.SetState("MINT1", domain.PositionStateClosing))
	got, _ = r.UpdatePeak("MINT1", d("5"))
	assert.True(t, got.PeakPrice.Equal(d("1.9")), "closing positions keep their peak")

	_, ok := r.UpdatePeak("MISSING", d("1"))
	assert.False(t, ok)
}

func TestGetReturnsCopy(t *testing.T) {
	r := New()
	pos := newPos("MINT1", "1")
	pos.CreatorAddresses = []string{"A"}
	require.NoError(t, r.Insert(pos))

	got, _ := r.Get("MINT1")
	got.CreatorAddresses[0] = "B"
	again, _ := r.Get("MINT1")
	assert.Equal(t, "A", again.CreatorAddresses[0])
}

func TestRemoveAndList(t *testing.T) {
	r := New()
	base := time.Now()
	for i, tok := range []string{"C", "A", "B"} {
		p := newPos(tok, "1")
		p.OpenedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, r.Insert(p))
	}
	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "C", list[0].Token)

	assert.True(t, r.Remove("A"))
	assert.False(t, r.Remove("A"))
	assert.False(t, r.Has("A"))
	assert.ErrorIs(t, r.SetState("A", domain.PositionStateOpen), domain.ErrNotFound)
	assert.Equal(t, 2, r.Len())
}

func TestKeyLockSerializesSameKey(t *testing.T) {
	k := NewKeyLock()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Acquire(context.Background(), "MINT1", time.Second)
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
	assert.Equal(t, 0, k.size(), "idle keys are dropped")
}

func TestKeyLockDifferentKeysDoNotBlock(t *testing.T) {
	k := NewKeyLock()
	unlockA, err := k.Acquire(context.Background(), "A", time.Second)
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := k.Acquire(ctx, "B", time.Second)
	require.NoError(t, err)
	unlockB()
}

func TestKeyLockHonorsContext(t *testing.T) {
	k := NewKeyLock()
	unlock, err := k.Acquire(context.Background(), "A", time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Acquire(ctx, "A", time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Equal(t, 0, k.size())
}
