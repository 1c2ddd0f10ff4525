package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/ledger"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/registry"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRisk struct {
	score    float64
	breakout bool
	err      error
	delay    time.Duration
}

func (f *fakeRisk) Score(context.Context, string) (float64, error) {
	return f.score, f.err
}

func (f *fakeRisk) PredictedBreakout(context.Context, string, decimal.Decimal) (bool, error) {
	if f.delay > 0 {
		// Ignores its context on purpose.
		time.Sleep(f.delay)
	}
	return f.breakout, f.err
}

type fakeCreators struct {
	addrs   []string
	selling bool
	seen    atomic.Value
}

func (f *fakeCreators) AssociatedAddresses(context.Context, string) ([]string, error) {
	return f.addrs, nil
}

func (f *fakeCreators) IsSelling(_ context.Context, _ string, addrs []string) (bool, error) {
	f.seen.Store(addrs)
	return f.selling, nil
}

type fakeGateway struct {
	mu      sync.Mutex
	calls   []domain.OrderRequest
	results []domain.ExecutionResult // consumed in order; last one repeats
	delay   time.Duration
}

func (g *fakeGateway) Submit(_ context.Context, order domain.OrderRequest) domain.ExecutionResult {
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, order)
	res := g.results[0]
	if len(g.results) > 1 {
		g.results = g.results[1:]
	}
	return res
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type panicGateway struct{}

func (panicGateway) Submit(context.Context, domain.OrderRequest) domain.ExecutionResult {
	panic("gateway must not be called in simulation")
}

type memJournal struct {
	mu   sync.Mutex
	recs []domain.TradeRecord
}

func (m *memJournal) Record(_ context.Context, rec domain.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memJournal) all() []domain.TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TradeRecord(nil), m.recs...)
}

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (m *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

type harness struct {
	engine  *Engine
	ledger  *ledger.Ledger
	reg     *registry.Registry
	journal *memJournal
	audit   *memAudit
	risk    *fakeRisk
}

func newHarness(t *testing.T, simulation bool, gw OrderExecutor, capital string, opts ...func(*Config, *Deps)) *harness {
	t.Helper()
	h := &harness{
		ledger:  ledger.New(decimal.Zero),
		reg:     registry.New(),
		journal: &memJournal{},
		audit:   &memAudit{},
		risk:    &fakeRisk{score: 0.9, breakout: true},
	}
	if capital != "" {
		require.NoError(t, h.ledger.SetCapital(d(capital)))
	}
	cfg := DefaultConfig()
	cfg.Simulation = simulation
	deps := Deps{
		Ledger:   h.ledger,
		Registry: h.reg,
		Locks:    registry.NewKeyLock(),
		Gateway:  gw,
		Journal:  h.journal,
		Risk:     h.risk,
		Audit:    h.audit,
	}
	for _, o := range opts {
		o(&cfg, &deps)
	}
	e, err := New(cfg, deps, testLogger())
	require.NoError(t, err)
	h.engine = e
	return h
}

func (h *harness) buy(t *testing.T, token, price string) Outcome {
	t.Helper()
	out, err := h.engine.HandleCandidate(context.Background(), domain.CandidateEvent{Token: token, ObservedPrice: d(price)})
	require.NoError(t, err)
	return out
}

func (h *harness) tick(t *testing.T, token, price string, whale bool) Outcome {
	t.Helper()
	out, err := h.engine.HandlePriceUpdate(context.Background(), domain.PriceUpdate{Token: token, Price: d(price), WhaleSelling: whale})
	require.NoError(t, err)
	return out
}

func okResult(venue, tx, price string) domain.ExecutionResult {
	return domain.ExecutionResult{Success: true, Venue: venue, TxID: tx, FillPrice: d(price), Latency: 40 * time.Millisecond}
}

func failResult() domain.ExecutionResult {
	return domain.ExecutionResult{Message: "all venues failed", ErrorKind: domain.ExecErrExhausted, Latency: 5 * time.Millisecond}
}

func TestExitScenarios(t *testing.T) {
	tests := []struct {
		name   string
		prices []string
		exit   ExitReason
	}{
		{"spike then retrace exits on trailing stop", []string{"1.5", "1.9", "1.55"}, ExitTrailingStop},
		{"take profit", []string{"2.1"}, ExitTakeProfit},
		{"stop loss", []string{"0.9"}, ExitStopLoss},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, true, panicGateway{}, "1")
			require.Equal(t, ActionBought, h.buy(t, "MINT", "1.0").Action)

			var last Outcome
			for i, p := range tt.prices {
				last = h.tick(t, "MINT", p, false)
				if i < len(tt.prices)-1 {
					require.Equal(t, ActionHold, last.Action, "price %s", p)
				}
			}
			require.Equal(t, ActionSold, last.Action)
			assert.Equal(t, tt.exit, last.Exit)
			require.NotNil(t, last.Trade)
			final := d(tt.prices[len(tt.prices)-1])
			assert.True(t, last.Trade.Price.Equal(final))
			assert.Equal(t, tt.exit.String(), last.Trade.ExitReason)
			assert.Equal(t, 0, h.reg.Len())

			// 1 - 0.01 + 0.01 × exit/entry
			want := d("0.99").Add(d("0.01").Mul(final))
			assert.True(t, h.ledger.Available().Equal(want), "available %s want %s", h.ledger.Available(), want)
		})
	}
}

func TestSimulationRecordsHaveNoVenueCost(t *testing.T) {
	h := newHarness(t, true, panicGateway{}, "1")
	h.buy(t, "MINT", "1")
	h.tick(t, "MINT", "2.5", false)

	recs := h.journal.all()
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, domain.VenueSimulated, rec.Venue)
		assert.True(t, rec.IsSimulated())
		assert.Empty(t, rec.TxID)
		assert.Zero(t, rec.Latency)
		assert.Equal(t, domain.TradeModeSimulation, rec.Mode)
	}
	assert.Equal(t, domain.TradeActionBuy, recs[0].Action)
	assert.Equal(t, domain.TradeActionSell, recs[1].Action)
}

func TestDuplicateEntryRejected(t *testing.T) {
	h := newHarness(t, true, nil, "1")
	require.Equal(t, ActionBought, h.buy(t, "MINT", "1").Action)

	out := h.buy(t, "MINT", "1.1")
	assert.Equal(t, ActionSkip, out.Action)
	assert.Equal(t, ReasonDuplicate, out.Reason)
	assert.Equal(t, 1, h.reg.Len())
	assert.True(t, h.ledger.Available().Equal(d("0.99")))
	assert.Len(t, h.journal.all(), 1)
}

func TestConcurrentEntriesCompetingForCapital(t *testing.T) {
	for i := 0; i < 20; i++ {
		h := newHarness(t, true, nil, "0.01")

		outs := make([]Outcome, 2)
		var wg sync.WaitGroup
		for j, tok := range []string{"A", "B"} {
			wg.Add(1)
			go func(j int, tok string) {
				defer wg.Done()
				out, err := h.engine.HandleCandidate(context.Background(), domain.CandidateEvent{Token: tok, ObservedPrice: d("1")})
				assert.NoError(t, err)
				outs[j] = out
			}(j, tok)
		}
		wg.Wait()

		bought, refused := 0, 0
		for _, o := range outs {
			switch {
			case o.Action == ActionBought:
				bought++
			case o.Action == ActionSkip && o.Reason == ReasonInsufficientCapital:
				refused++
			}
		}
		require.Equal(t, 1, bought)
		require.Equal(t, 1, refused)
		require.True(t, h.ledger.Available().IsZero())
	}
}

func TestBuyFailureReleasesReservation(t *testing.T) {
	gw := &fakeGateway{results: []domain.ExecutionResult{failResult()}}
	h := newHarness(t, false, gw, "0.05")

	out := h.buy(t, "MINT", "1")
	assert.Equal(t, ActionFailed, out.Action)
	assert.NotEmpty(t, out.Reason)
	assert.True(t, h.ledger.Available().Equal(d("0.05")))
	assert.Equal(t, 0, h.reg.Len())
	assert.Empty(t, h.journal.all())
	assert.Contains(t, h.audit.events, "buy_failed")
	require.Equal(t, 1, gw.callCount())
	assert.True(t, gw.calls[0].Size.Equal(d("0.01")))
}

func TestRealModeUsesGatewayFill(t *testing.T) {
	gw := &fakeGateway{results: []domain.ExecutionResult{
		okResult("jupiter", "sig-buy", "1.02"),
		okResult("raydium", "sig-sell", "2.2"),
	}}
	h := newHarness(t, false, gw, "1")

	out := h.buy(t, "MINT", "1")
	require.Equal(t, ActionBought, out.Action)
	pos, ok := h.reg.Get("MINT")
	require.True(t, ok)
	assert.True(t, pos.EntryPrice.Equal(d("1.02")))
	assert.True(t, pos.PeakPrice.Equal(d("1.02")))
	assert.Equal(t, "jupiter", out.Trade.Venue)
	assert.Equal(t, "sig-buy", out.Trade.TxID)
	assert.Equal(t, domain.TradeModeReal, out.Trade.Mode)

	out = h.tick(t, "MINT", "2.1", false)
	require.Equal(t, ActionSold, out.Action)
	assert.Equal(t, domain.OrderSideSell, gw.calls[1].Side)
	assert.True(t, gw.calls[1].Size.Equal(d("0.01")), "sells the full position")
	assert.Equal(t, 40*time.Millisecond, out.Trade.Latency)
	// 0.99 + 0.01 × 2.2 / 1.02
	want := d("0.99").Add(d("0.01").Mul(d("2.2")).Div(d("1.02")))
	assert.True(t, h.ledger.Available().Equal(want))
}

func TestSellFailureReturnsPositionToOpen(t *testing.T) {
	gw := &fakeGateway{results: []domain.ExecutionResult{
		okResult("jupiter", "sig-buy", "1"),
		failResult(),
		okResult("orca", "sig-sell", "0.8"),
	}}
	h := newHarness(t, false, gw, "1")
	h.buy(t, "MINT", "1")

	out := h.tick(t, "MINT", "0.9", false)
	assert.Equal(t, ActionFailed, out.Action)
	assert.Equal(t, ExitStopLoss, out.Exit)
	pos, ok := h.reg.Get("MINT")
	require.True(t, ok, "failed sell keeps the position")
	assert.Equal(t, domain.PositionStateOpen, pos.State)
	assert.True(t, h.ledger.Available().Equal(d("0.99")))
	assert.Contains(t, h.audit.events, "sell_failed")

	out = h.tick(t, "MINT", "0.8", false)
	assert.Equal(t, ActionSold, out.Action)
	assert.Equal(t, 0, h.reg.Len())
	assert.True(t, h.ledger.Available().Equal(d("0.998")))
}

func TestSameTokenUpdatesAreSerialized(t *testing.T) {
	gw := &fakeGateway{
		results: []domain.ExecutionResult{okResult("jupiter", "sig", "1")},
		delay:   20 * time.Millisecond,
	}
	h := newHarness(t, false, gw, "1")
	h.buy(t, "MINT", "1")

	var wg sync.WaitGroup
	var sold atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := h.engine.HandlePriceUpdate(context.Background(), domain.PriceUpdate{Token: "MINT", Price: d("0.5")})
			assert.NoError(t, err)
			if out.Action == ActionSold {
				sold.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), sold.Load())
	assert.Equal(t, 2, gw.callCount(), "one buy and exactly one sell")
}

func TestPriceUpdateWaitsForInFlightBuy(t *testing.T) {
	gw := &fakeGateway{
		results: []domain.ExecutionResult{okResult("jupiter", "sig-buy", "1"), okResult("jupiter", "sig-sell", "0.5")},
		delay:   100 * time.Millisecond,
	}
	h := newHarness(t, false, gw, "1")

	bought := make(chan Outcome, 1)
	go func() {
		out, err := h.engine.HandleCandidate(context.Background(), domain.CandidateEvent{Token: "MINT", ObservedPrice: d("1")})
		assert.NoError(t, err)
		bought <- out
	}()

	// Let the buy take the token lock before the tick arrives.
	time.Sleep(20 * time.Millisecond)
	out := h.tick(t, "MINT", "0.5", false)

	assert.Equal(t, ActionBought, (<-bought).Action)
	require.Equal(t, ActionSold, out.Action)
	assert.Equal(t, ExitStopLoss, out.Exit)
	assert.Equal(t, 0, h.reg.Len())
	assert.Equal(t, 2, gw.callCount())
}

func TestRiskGate(t *testing.T) {
	tests := []struct {
		name   string
		risk   fakeRisk
		reason string
	}{
		{"low trust", fakeRisk{score: 0.5, breakout: true}, ReasonLowTrust},
		{"negative prediction", fakeRisk{score: 0.9, breakout: false}, ReasonPredictedNegative},
		{"collaborator down", fakeRisk{err: errors.New("connection refused")}, ReasonRiskUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, true, nil, "1")
			*h.risk = tt.risk

			out := h.buy(t, "MINT", "1")
			assert.Equal(t, ActionSkip, out.Action)
			assert.Equal(t, tt.reason, out.Reason)
			assert.True(t, h.ledger.Available().Equal(d("1")))
			assert.Equal(t, 0, h.reg.Len())
		})
	}
}

func TestSlowPredictionIsRejectedWithinBudget(t *testing.T) {
	h := newHarness(t, true, nil, "1", func(c *Config, _ *Deps) {
		c.PredictBudget = 20 * time.Millisecond
	})
	h.risk.delay = 300 * time.Millisecond

	start := time.Now()
	out := h.buy(t, "MINT", "1")
	assert.Less(t, time.Since(start), 250*time.Millisecond)
	assert.Equal(t, ActionSkip, out.Action)
	assert.Equal(t, ReasonPredictTimeout, out.Reason)
	assert.True(t, h.ledger.Available().Equal(d("1")))
}

func TestCapitalNeverConfiguredIsFatal(t *testing.T) {
	h := newHarness(t, true, nil, "")

	_, err := h.engine.HandleCandidate(context.Background(), domain.CandidateEvent{Token: "MINT", ObservedPrice: d("1")})
	assert.ErrorIs(t, err, domain.ErrCapitalNotConfigured)
	assert.Equal(t, 0, h.reg.Len())
	assert.Contains(t, h.audit.events, "capital_not_configured")
}

func TestDumpSignal(t *testing.T) {
	t.Run("whale flag", func(t *testing.T) {
		h := newHarness(t, true, nil, "1")
		h.buy(t, "MINT", "1")
		assert.Equal(t, ActionHold, h.tick(t, "MINT", "1.1", false).Action)

		out := h.tick(t, "MINT", "1.1", true)
		require.Equal(t, ActionSold, out.Action)
		assert.Equal(t, ExitDumpSignal, out.Exit)
		assert.True(t, out.Trade.DumpSignal)
	})

	t.Run("creator wallets selling", func(t *testing.T) {
		creators := &fakeCreators{addrs: []string{"dev1", "dev2"}}
		h := newHarness(t, true, nil, "1", func(_ *Config, d *Deps) { d.Creators = creators })
		h.buy(t, "MINT", "1")
		pos, _ := h.reg.Get("MINT")
		assert.Equal(t, []string{"dev1", "dev2"}, pos.CreatorAddresses)

		assert.Equal(t, ActionHold, h.tick(t, "MINT", "1.2", false).Action)
		creators.selling = true
		out := h.tick(t, "MINT", "1.2", false)
		assert.Equal(t, ExitDumpSignal, out.Exit)
		assert.Equal(t, []string{"dev1", "dev2"}, creators.seen.Load())
	})

	t.Run("price rules win over dump", func(t *testing.T) {
		h := newHarness(t, true, nil, "1")
		h.buy(t, "MINT", "1")
		out := h.tick(t, "MINT", "0.9", true)
		assert.Equal(t, ExitStopLoss, out.Exit)
		assert.False(t, out.Trade.DumpSignal)
	})
}

func TestPriceUpdateWithoutPosition(t *testing.T) {
	h := newHarness(t, true, nil, "1")
	out := h.tick(t, "NOPE", "1", false)
	assert.Equal(t, ActionIgnored, out.Action)
	assert.Equal(t, ReasonNoPosition, out.Reason)
}

func TestInvalidEvents(t *testing.T) {
	h := newHarness(t, true, nil, "1")
	out := h.buy(t, "MINT", "0")
	assert.Equal(t, ReasonInvalidEvent, out.Reason)
	out = h.tick(t, "", "1", false)
	assert.Equal(t, ReasonInvalidEvent, out.Reason)
}

func TestSetParameters(t *testing.T) {
	h := newHarness(t, true, nil, "1")

	assert.ErrorIs(t, h.engine.SetParameters(d("0"), d("2")), domain.ErrInvalidAmount)
	assert.ErrorIs(t, h.engine.SetParameters(d("0.02"), d("1")), domain.ErrInvalidAmount)

	require.NoError(t, h.engine.SetParameters(d("0.02"), d("1.5")))
	assert.True(t, h.engine.Parameters().BuyAmount.Equal(d("0.02")))

	h.buy(t, "MINT", "1")
	assert.True(t, h.ledger.Available().Equal(d("0.98")))
	out := h.tick(t, "MINT", "1.5", false)
	assert.Equal(t, ExitTakeProfit, out.Exit)
}

func TestUpdateParameters_KeepsConcurrentPartialChanges(t *testing.T) {
	h := newHarness(t, true, nil, "1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.engine.UpdateParameters(func(p Parameters) Parameters {
				p.BuyAmount = d("0.03")
				return p
			})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := h.engine.UpdateParameters(func(p Parameters) Parameters {
				p.SellMultiplier = d("3")
				return p
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p := h.engine.Parameters()
	assert.True(t, p.BuyAmount.Equal(d("0.03")))
	assert.True(t, p.SellMultiplier.Equal(d("3")))

	_, err := h.engine.UpdateParameters(func(p Parameters) Parameters {
		p.SellMultiplier = d("0.5")
		return p
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.True(t, h.engine.Parameters().SellMultiplier.Equal(d("3")), "rejected update leaves parameters unchanged")
}

func TestOperatorSurface(t *testing.T) {
	h := newHarness(t, true, nil, "")
	require.NoError(t, h.engine.SetCapital(d("0.05")))
	assert.True(t, h.engine.AvailableCapital().Equal(d("0.05")))

	h.buy(t, "B", "1")
	h.buy(t, "A", "1")
	held := h.engine.HeldPositions()
	assert.Len(t, held, 2)

	st := h.engine.Status()
	assert.Equal(t, "simulation", st.Mode)
	assert.Equal(t, 2, st.OpenPositions)
	assert.True(t, st.AvailableCapital.Equal(d("0.03")))
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(DefaultConfig(), Deps{}, testLogger())
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Simulation = false
	_, err = New(cfg, Deps{
		Ledger:   ledger.New(decimal.Zero),
		Registry: registry.New(),
		Locks:    registry.NewKeyLock(),
		Journal:  &memJournal{},
		Risk:     &fakeRisk{},
	}, testLogger())
	assert.ErrorContains(t, err, "gateway")
}
