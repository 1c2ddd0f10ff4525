package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// HandleCandidate runs the entry rules for one candidate token. Skips are
// reported in the Outcome; an error is returned only for conditions that
// must stop processing, such as a ledger that was never given capital, or
// for a cancelled context.
func (e *Engine) HandleCandidate(ctx context.Context, ev domain.CandidateEvent) (Outcome, error) {
	if ev.Token == "" || !ev.ObservedPrice.IsPositive() {
		return e.skipEntry(ev, ReasonInvalidEvent), nil
	}

	unlock, err := e.lock(ctx, ev.Token)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	params := e.Parameters()
	log := e.logger.With(
		slog.String("token", ev.Token),
		slog.String("action", string(domain.TradeActionBuy)),
		slog.String("amount", params.BuyAmount.String()),
	)

	if e.deps.Registry.Has(ev.Token) {
		return e.skipEntry(ev, ReasonDuplicate), nil
	}

	if reason := e.checkRisk(ctx, ev, log); reason != "" {
		return e.skipEntry(ev, reason), nil
	}

	granted, err := e.deps.Ledger.Reserve(params.BuyAmount)
	if err != nil {
		if errors.Is(err, domain.ErrCapitalNotConfigured) {
			log.Error("refusing to trade without configured capital")
			e.audit(ctx, "capital_not_configured", map[string]any{"token": ev.Token})
		}
		return Outcome{}, fmt.Errorf("engine: reserve for %s: %w", ev.Token, err)
	}
	if !granted {
		return e.skipEntry(ev, ReasonInsufficientCapital), nil
	}

	order := domain.OrderRequest{
		Token: ev.Token,
		Side:  domain.OrderSideBuy,
		Size:  params.BuyAmount,
		Price: ev.ObservedPrice,
	}
	res := e.execute(ctx, order)
	if !res.Success {
		if err := e.deps.Ledger.Release(params.BuyAmount); err != nil {
			log.Error("refund after failed buy", slog.String("error", err.Error()))
		}
		log.Warn("buy failed, reservation released",
			slog.String("kind", string(res.ErrorKind)),
			slog.String("message", res.Message),
			slog.Duration("latency", res.Latency),
		)
		e.audit(ctx, "buy_failed", map[string]any{
			"token":   ev.Token,
			"amount":  params.BuyAmount.String(),
			"kind":    string(res.ErrorKind),
			"message": res.Message,
		})
		e.deps.Metrics.ObserveDecision("entry", string(ActionFailed))
		e.publishGauges()
		return Outcome{Action: ActionFailed, Reason: res.Message}, nil
	}

	now := e.deps.Now()
	pos := domain.Position{
		Token:            ev.Token,
		EntryPrice:       res.FillPrice,
		Size:             params.BuyAmount,
		PeakPrice:        res.FillPrice,
		CreatorAddresses: e.creatorAddresses(ctx, ev.Token, log),
		OpenedAt:         now,
		State:            domain.PositionStateOpen,
		Mode:             e.Mode(),
	}
	if err := e.deps.Registry.Insert(pos); err != nil {
		// The buy went through; the position cannot be dropped silently.
		log.Error("position insert failed after fill", slog.String("error", err.Error()))
		e.audit(ctx, "position_insert_failed", map[string]any{"token": ev.Token, "error": err.Error()})
		return Outcome{}, fmt.Errorf("engine: insert %s: %w", ev.Token, err)
	}

	rec := domain.TradeRecord{
		ID:        uuid.New().String(),
		Token:     ev.Token,
		Action:    domain.TradeActionBuy,
		Price:     res.FillPrice,
		Size:      params.BuyAmount,
		Latency:   res.Latency,
		Venue:     res.Venue,
		TxID:      res.TxID,
		Mode:      e.Mode(),
		Timestamp: now,
	}
	e.record(ctx, rec)

	log.Info("position opened",
		slog.String("price", res.FillPrice.String()),
		slog.String("venue", res.Venue),
		slog.Duration("latency", res.Latency),
		slog.Int("creator_addresses", len(pos.CreatorAddresses)),
	)
	e.deps.Metrics.ObserveDecision("entry", string(ActionBought))
	e.publishGauges()
	return Outcome{Action: ActionBought, Trade: &rec}, nil
}

// checkRisk consults the risk collaborator and returns a skip reason, or ""
// when the candidate passes.
func (e *Engine) checkRisk(ctx context.Context, ev domain.CandidateEvent, log *slog.Logger) string {
	score, elapsed, err := callWithBudget(ctx, e.cfg.PredictBudget, func(ctx context.Context) (float64, error) {
		return e.deps.Risk.Score(ctx, ev.Token)
	})
	if reason := e.budgetFailure(err, elapsed, "score", log); reason != "" {
		return reason
	}
	if score < e.cfg.TrustThreshold {
		log.Info("trust score below threshold",
			slog.Float64("score", score),
			slog.Float64("threshold", e.cfg.TrustThreshold),
		)
		return ReasonLowTrust
	}

	breakout, elapsed, err := callWithBudget(ctx, e.cfg.PredictBudget, func(ctx context.Context) (bool, error) {
		return e.deps.Risk.PredictedBreakout(ctx, ev.Token, ev.ObservedPrice)
	})
	if reason := e.budgetFailure(err, elapsed, "predicted_breakout", log); reason != "" {
		return reason
	}
	if !breakout {
		return ReasonPredictedNegative
	}
	return ""
}

func (e *Engine) budgetFailure(err error, elapsed time.Duration, call string, log *slog.Logger) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errBudgetExceeded):
		e.deps.Metrics.ObserveLatencyBreach()
		log.Warn("predictive check latency breach",
			slog.String("call", call),
			slog.Duration("elapsed", elapsed),
			slog.Duration("budget", e.cfg.PredictBudget),
		)
		return ReasonPredictTimeout
	default:
		log.Warn("risk collaborator failed",
			slog.String("call", call),
			slog.String("error", err.Error()),
		)
		return ReasonRiskUnavailable
	}
}

// creatorAddresses asks the creator graph for the token's associated
// wallets. Failure leaves the set empty.
func (e *Engine) creatorAddresses(ctx context.Context, token string, log *slog.Logger) []string {
	if e.deps.Creators == nil {
		return nil
	}
	addrs, _, err := callWithBudget(ctx, e.cfg.PredictBudget, func(ctx context.Context) ([]string, error) {
		return e.deps.Creators.AssociatedAddresses(ctx, token)
	})
	if err != nil {
		log.Warn("creator lookup failed", slog.String("error", err.Error()))
		return nil
	}
	return addrs
}

// execute fills locally in simulation mode and goes through the gateway
// otherwise.
func (e *Engine) execute(ctx context.Context, order domain.OrderRequest) domain.ExecutionResult {
	if e.cfg.Simulation {
		return domain.ExecutionResult{
			Success:   true,
			Venue:     domain.VenueSimulated,
			FillPrice: order.Price,
			Message:   "simulated fill",
		}
	}
	res := e.deps.Gateway.Submit(ctx, order)
	if res.Success && !res.FillPrice.IsPositive() {
		res.FillPrice = order.Price
	}
	return res
}

func (e *Engine) skipEntry(ev domain.CandidateEvent, reason string) Outcome {
	e.logger.Info("entry skipped",
		slog.String("token", ev.Token),
		slog.String("action", string(domain.TradeActionBuy)),
		slog.String("price", ev.ObservedPrice.String()),
		slog.String("reason", reason),
	)
	e.deps.Metrics.ObserveDecision("entry", reason)
	return Outcome{Action: ActionSkip, Reason: reason}
}
