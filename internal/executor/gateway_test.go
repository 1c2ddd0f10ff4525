package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buyOrder() domain.OrderRequest {
	return domain.OrderRequest{
		Token: "MINT1",
		Side:  domain.OrderSideBuy,
		Size:  decimal.RequireFromString("0.01"),
		Price: decimal.RequireFromString("1.25"),
	}
}

// countingVenue records how often it was called.
type countingVenue struct {
	name  string
	calls atomic.Int32
	fill  Fill
	err   error
	delay time.Duration
}

func (v *countingVenue) Name() string { return v.name }

func (v *countingVenue) Submit(ctx context.Context, _ domain.OrderRequest) (Fill, error) {
	v.calls.Add(1)
	if v.delay > 0 {
		select {
		case <-time.After(v.delay):
		case <-ctx.Done():
			return Fill{}, fmt.Errorf("%s: %w", v.name, domain.ErrVenueUnavailable)
		}
	}
	return v.fill, v.err
}

func realConfig() Config {
	cfg := DefaultConfig()
	cfg.RatePerSecond = 0
	return cfg
}

func TestSimulationNeverTouchesVenues(t *testing.T) {
	v := &countingVenue{name: "jupiter"}
	cfg := realConfig()
	cfg.Simulate = true
	g := New(cfg, []Venue{v}, nil, testLogger())

	res := g.Submit(context.Background(), buyOrder())
	assert.True(t, res.Success)
	assert.Equal(t, domain.VenueSimulated, res.Venue)
	assert.Empty(t, res.TxID)
	assert.Zero(t, res.Latency)
	assert.True(t, res.FillPrice.Equal(decimal.RequireFromString("1.25")))
	assert.Zero(t, v.calls.Load())
	assert.True(t, g.Simulated())
}

func TestAllVenuesUnavailable(t *testing.T) {
	venues, err := BuildVenues(DefaultVenueOrder)
	require.NoError(t, err)
	g := New(realConfig(), venues, metrics.New(), testLogger())

	res := g.Submit(context.Background(), buyOrder())
	assert.False(t, res.Success)
	assert.Empty(t, res.TxID)
	assert.Empty(t, res.Venue)
	assert.NotEmpty(t, res.Message)
	assert.Contains(t, res.Message, "jupiter")
	assert.Contains(t, res.Message, "orca")
	assert.Equal(t, domain.ExecErrExhausted, res.ErrorKind)
}

func TestFirstSuccessStopsChain(t *testing.T) {
	first := &countingVenue{name: "a", fill: Fill{TxID: "sig-1"}}
	second := &countingVenue{name: "b", fill: Fill{TxID: "sig-2"}}
	g := New(realConfig(), []Venue{first, second}, nil, testLogger())

	res := g.Submit(context.Background(), buyOrder())
	require.True(t, res.Success)
	assert.Equal(t, "sig-1", res.TxID)
	assert.Equal(t, "a", res.Venue)
	assert.True(t, res.FillPrice.Equal(decimal.RequireFromString("1.25")), "falls back to the observed price")
	assert.Equal(t, int32(1), first.calls.Load())
	assert.Zero(t, second.calls.Load())
}

func TestFallsBackInOrder(t *testing.T) {
	a := &countingVenue{name: "a", err: fmt.Errorf("a: %w", domain.ErrVenueUnavailable)}
	b := &countingVenue{name: "b", err: fmt.Errorf("b: %w", domain.ErrVenueRejected)}
	c := &countingVenue{name: "c", fill: Fill{TxID: "sig-c", Price: decimal.RequireFromString("1.3")}}
	g := New(realConfig(), []Venue{a, b, c}, nil, testLogger())

	res := g.Submit(context.Background(), buyOrder())
	require.True(t, res.Success)
	assert.Equal(t, "c", res.Venue)
	assert.True(t, res.FillPrice.Equal(decimal.RequireFromString("1.3")))
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(1), b.calls.Load())
}

func TestLatencyMeasuredEvenOnFailure(t *testing.T) {
	slow := &countingVenue{name: "slow", delay: 20 * time.Millisecond, err: fmt.Errorf("slow: %w", domain.ErrVenueUnavailable)}
	g := New(realConfig(), []Venue{slow}, nil, testLogger())

	res := g.Submit(context.Background(), buyOrder())
	assert.False(t, res.Success)
	assert.GreaterOrEqual(t, res.Latency, 20*time.Millisecond)
}

func TestBreakerSkipsFailingVenue(t *testing.T) {
	bad := &countingVenue{name: "bad", err: fmt.Errorf("bad: %w", domain.ErrVenueUnavailable)}
	good := &countingVenue{name: "good", fill: Fill{TxID: "ok"}}
	cfg := realConfig()
	cfg.BreakerFailures = 2
	cfg.BreakerCooldown = time.Minute
	g := New(cfg, []Venue{bad, good}, nil, testLogger())

	for i := 0; i < 5; i++ {
		res := g.Submit(context.Background(), buyOrder())
		require.True(t, res.Success)
	}
	assert.Equal(t, int32(2), bad.calls.Load(), "breaker opens after two consecutive failures")
	assert.Equal(t, int32(5), good.calls.Load())
}

func TestRejectionsDoNotTripBreaker(t *testing.T) {
	rej := &countingVenue{name: "rej", err: fmt.Errorf("rej: %w", domain.ErrVenueRejected)}
	cfg := realConfig()
	cfg.BreakerFailures = 1
	g := New(cfg, []Venue{rej}, nil, testLogger())

	for i := 0; i < 3; i++ {
		g.Submit(context.Background(), buyOrder())
	}
	assert.Equal(t, int32(3), rej.calls.Load())
}

func TestCancelledContext(t *testing.T) {
	v := &countingVenue{name: "a", fill: Fill{TxID: "x"}}
	g := New(realConfig(), []Venue{v}, nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := g.Submit(ctx, buyOrder())
	assert.False(t, res.Success)
	assert.Equal(t, domain.ExecErrCancelled, res.ErrorKind)
	assert.Zero(t, v.calls.Load())
}

func TestRateLimitFallsThrough(t *testing.T) {
	a := &countingVenue{name: "a", fill: Fill{TxID: "a"}}
	b := &countingVenue{name: "b", fill: Fill{TxID: "b"}}
	cfg := realConfig()
	cfg.RatePerSecond = 0.001
	cfg.RateBurst = 1
	g := New(cfg, []Venue{a, b}, nil, testLogger())

	first := g.Submit(context.Background(), buyOrder())
	second := g.Submit(context.Background(), buyOrder())
	assert.Equal(t, "a", first.Venue)
	assert.Equal(t, "b", second.Venue)
}

func TestBuildVenues(t *testing.T) {
	venues, err := BuildVenues([]string{"Jupiter", " orca "})
	require.NoError(t, err)
	require.Len(t, venues, 2)
	assert.Equal(t, "jupiter", venues[0].Name())
	assert.Equal(t, "orca", venues[1].Name())

	_, err = BuildVenues([]string{"serum"})
	assert.Error(t, err)
	_, err = BuildVenues([]string{"orca", "orca"})
	assert.Error(t, err)

	_, err = venues[0].Submit(context.Background(), buyOrder())
	assert.ErrorIs(t, err, domain.ErrVenueUnavailable)
}
