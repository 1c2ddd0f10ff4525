// Package engine is the per-token trading state machine: it decides entries
// on candidate events and exits on price updates, moving capital through the
// ledger and positions through the registry.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/ledger"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/metrics"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/registry"
)

// RiskScorer is the external risk/reputation collaborator. Both calls may
// be slow or fail; the engine treats failure as a reject.
type RiskScorer interface {
	Score(ctx context.Context, token string) (float64, error)
	PredictedBreakout(ctx context.Context, token string, price decimal.Decimal) (bool, error)
}

// CreatorGraph is the external creator-wallet collaborator.
type CreatorGraph interface {
	AssociatedAddresses(ctx context.Context, token string) ([]string, error)
	IsSelling(ctx context.Context, token string, addresses []string) (bool, error)
}

// OrderExecutor submits orders. It reports failures in the result.
type OrderExecutor interface {
	Submit(ctx context.Context, order domain.OrderRequest) domain.ExecutionResult
}

// TradeRecorder receives every executed trade.
type TradeRecorder interface {
	Record(ctx context.Context, rec domain.TradeRecord) error
}

// Auditor records failures for later review.
type Auditor interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}

// Config holds the static engine settings.
type Config struct {
	// Simulation fills every order locally at the observed price.
	Simulation           bool
	TrailingStopFraction decimal.Decimal
	TrustThreshold       float64
	// PredictBudget bounds each call to the risk and creator collaborators.
	// A call that runs out of budget counts as a reject.
	PredictBudget time.Duration
	// LockTTL bounds how long one token's evaluation may hold its lock.
	LockTTL time.Duration
	// Initial parameters.
	BuyAmount      decimal.Decimal
	SellMultiplier decimal.Decimal
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		Simulation:           true,
		TrailingStopFraction: decimal.RequireFromString("0.15"),
		TrustThreshold:       0.7,
		PredictBudget:        800 * time.Millisecond,
		LockTTL:              30 * time.Second,
		BuyAmount:            decimal.RequireFromString("0.01"),
		SellMultiplier:       decimal.RequireFromString("2.0"),
	}
}

// Deps are the engine's collaborators. Creators, Audit and Metrics are
// optional.
type Deps struct {
	Ledger   *ledger.Ledger
	Registry *registry.Registry
	Locks    domain.LockManager
	Gateway  OrderExecutor
	Journal  TradeRecorder
	Risk     RiskScorer
	Creators CreatorGraph
	Audit    Auditor
	Metrics  *metrics.Registry
	Now      func() time.Time
}

// Engine evaluates candidate and price events. Evaluations for different
// tokens run concurrently; evaluations for one token are serialized through
// the lock manager.
type Engine struct {
	cfg    Config
	deps   Deps
	params atomic.Pointer[Parameters]
	logger *slog.Logger
}

// New builds an Engine. It fails when a required collaborator is missing
// or the initial parameters are invalid.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Engine, error) {
	switch {
	case deps.Ledger == nil:
		return nil, fmt.Errorf("engine: ledger is required")
	case deps.Registry == nil:
		return nil, fmt.Errorf("engine: registry is required")
	case deps.Locks == nil:
		return nil, fmt.Errorf("engine: lock manager is required")
	case deps.Journal == nil:
		return nil, fmt.Errorf("engine: journal is required")
	case deps.Risk == nil:
		return nil, fmt.Errorf("engine: risk scorer is required")
	case deps.Gateway == nil && !cfg.Simulation:
		return nil, fmt.Errorf("engine: gateway is required outside simulation")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}

	e := &Engine{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(slog.String("component", "engine")),
	}
	p := Parameters{BuyAmount: cfg.BuyAmount, SellMultiplier: cfg.SellMultiplier}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	e.params.Store(&p)
	return e, nil
}

// Mode is the trade mode stamped on every record.
func (e *Engine) Mode() domain.TradeMode {
	if e.cfg.Simulation {
		return domain.TradeModeSimulation
	}
	return domain.TradeModeReal
}

// SetCapital is the operator command that (re)configures the capital pool.
func (e *Engine) SetCapital(amount decimal.Decimal) error {
	if err := e.deps.Ledger.SetCapital(amount); err != nil {
		return err
	}
	e.logger.Info("capital set", slog.String("amount", amount.String()))
	e.publishGauges()
	return nil
}

// AvailableCapital returns the ledger's available capital.
func (e *Engine) AvailableCapital() decimal.Decimal {
	return e.deps.Ledger.Available()
}

// TotalCapital returns the configured capital ceiling.
func (e *Engine) TotalCapital() decimal.Decimal {
	return e.deps.Ledger.Total()
}

// HeldPositions returns a snapshot of every open or closing position.
func (e *Engine) HeldPositions() []domain.Position {
	return e.deps.Registry.List()
}

// Status summarizes the engine for the operator API.
func (e *Engine) Status() domain.BotStatus {
	return domain.BotStatus{
		Mode:             string(e.Mode()),
		Simulation:       e.cfg.Simulation,
		OpenPositions:    e.deps.Registry.Len(),
		AvailableCapital: e.deps.Ledger.Available(),
	}
}

func (e *Engine) lock(ctx context.Context, token string) (func(), error) {
	unlock, err := e.deps.Locks.Acquire(ctx, "token:"+token, e.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("engine: lock %s: %w", token, err)
	}
	return unlock, nil
}

func (e *Engine) audit(ctx context.Context, event string, detail map[string]any) {
	if e.deps.Audit == nil {
		return
	}
	if err := e.deps.Audit.Log(ctx, event, detail); err != nil {
		e.logger.Warn("audit log failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

func (e *Engine) record(ctx context.Context, rec domain.TradeRecord) {
	if err := e.deps.Journal.Record(ctx, rec); err != nil {
		e.logger.Error("journal append failed",
			slog.String("token", rec.Token),
			slog.String("action", string(rec.Action)),
			slog.String("amount", rec.Size.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) publishGauges() {
	avail, _ := e.deps.Ledger.Available().Float64()
	e.deps.Metrics.SetCapital(avail)
	e.deps.Metrics.SetOpenPositions(e.deps.Registry.Len())
}

// errBudgetExceeded marks a collaborator call that ran out of budget.
var errBudgetExceeded = errors.New("latency budget exceeded")

type budgetResult[T any] struct {
	val T
	err error
}

// callWithBudget runs fn bounded by budget. The caller never waits past the
// budget even if fn ignores its context; a late result is discarded.
func callWithBudget[T any](ctx context.Context, budget time.Duration, fn func(ctx context.Context) (T, error)) (T, time.Duration, error) {
	start := time.Now()
	if budget <= 0 {
		v, err := fn(ctx)
		return v, time.Since(start), err
	}

	bctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	done := make(chan budgetResult[T], 1)
	go func() {
		v, err := fn(bctx)
		done <- budgetResult[T]{val: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if bctx.Err() != nil && ctx.Err() == nil {
			return zero, time.Since(start), errBudgetExceeded
		}
		return r.val, time.Since(start), r.err
	case <-bctx.Done():
		if ctx.Err() != nil {
			return zero, time.Since(start), ctx.Err()
		}
		return zero, time.Since(start), errBudgetExceeded
	}
}
