package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// HandlePriceUpdate runs the exit rules for one price update. Updates for
// tokens without an open position are ignored.
func (e *Engine) HandlePriceUpdate(ctx context.Context, up domain.PriceUpdate) (Outcome, error) {
	if up.Token == "" || !up.Price.IsPositive() {
		e.logger.Debug("invalid price update", slog.String("token", up.Token), slog.String("price", up.Price.String()))
		return Outcome{Action: ActionIgnored, Reason: ReasonInvalidEvent}, nil
	}

	unlock, err := e.lock(ctx, up.Token)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	// Looked up under the lock so a tick racing an in-flight buy waits for it.
	pos, ok := e.deps.Registry.Get(up.Token)
	if !ok {
		return e.ignoreUpdate(up, ReasonNoPosition), nil
	}
	if pos.State != domain.PositionStateOpen {
		return e.ignoreUpdate(up, ReasonClosing), nil
	}
	pos, _ = e.deps.Registry.UpdatePeak(up.Token, up.Price)

	params := e.Parameters()
	log := e.logger.With(
		slog.String("token", up.Token),
		slog.String("action", string(domain.TradeActionSell)),
		slog.String("amount", pos.Size.String()),
	)

	reason := EvaluateExit(pos, up.Price, e.cfg.TrailingStopFraction, params.SellMultiplier)
	if reason == ExitNone && e.dumpSignal(ctx, pos, up, log) {
		reason = ExitDumpSignal
	}
	if reason == ExitNone {
		e.deps.Metrics.ObserveDecision("exit", string(ActionHold))
		return Outcome{Action: ActionHold}, nil
	}

	if err := e.deps.Registry.SetState(up.Token, domain.PositionStateClosing); err != nil {
		return Outcome{}, err
	}
	log.Info("exit triggered",
		slog.String("reason", reason.String()),
		slog.String("price", up.Price.String()),
		slog.String("entry", pos.EntryPrice.String()),
		slog.String("peak", pos.PeakPrice.String()),
	)

	order := domain.OrderRequest{
		Token: up.Token,
		Side:  domain.OrderSideSell,
		Size:  pos.Size,
		Price: up.Price,
	}
	res := e.execute(ctx, order)
	if !res.Success {
		if err := e.deps.Registry.SetState(up.Token, domain.PositionStateOpen); err != nil {
			log.Error("reopen after failed sell", slog.String("error", err.Error()))
		}
		log.Warn("sell failed, position reopened",
			slog.String("reason", reason.String()),
			slog.String("kind", string(res.ErrorKind)),
			slog.String("message", res.Message),
			slog.Duration("latency", res.Latency),
		)
		e.audit(ctx, "sell_failed", map[string]any{
			"token":   up.Token,
			"amount":  pos.Size.String(),
			"reason":  reason.String(),
			"kind":    string(res.ErrorKind),
			"message": res.Message,
		})
		e.deps.Metrics.ObserveDecision("exit", string(ActionFailed))
		return Outcome{Action: ActionFailed, Reason: res.Message, Exit: reason}, nil
	}

	proceeds := Proceeds(pos, res.FillPrice)
	if err := e.deps.Ledger.Release(proceeds); err != nil {
		log.Error("release sell proceeds", slog.String("proceeds", proceeds.String()), slog.String("error", err.Error()))
	}
	e.deps.Registry.Remove(up.Token)

	rec := domain.TradeRecord{
		ID:         uuid.New().String(),
		Token:      up.Token,
		Action:     domain.TradeActionSell,
		Price:      res.FillPrice,
		Size:       pos.Size,
		Latency:    res.Latency,
		Venue:      res.Venue,
		TxID:       res.TxID,
		Mode:       e.Mode(),
		DumpSignal: reason == ExitDumpSignal,
		ExitReason: reason.String(),
		Timestamp:  e.deps.Now(),
	}
	e.record(ctx, rec)

	log.Info("position closed",
		slog.String("reason", reason.String()),
		slog.String("price", res.FillPrice.String()),
		slog.String("proceeds", proceeds.String()),
		slog.String("venue", res.Venue),
		slog.Duration("latency", res.Latency),
	)
	e.deps.Metrics.ObserveExit(reason.String())
	e.deps.Metrics.ObserveDecision("exit", string(ActionSold))
	e.publishGauges()
	return Outcome{Action: ActionSold, Exit: reason, Trade: &rec}, nil
}

// Proceeds is the base-currency value of a full-size sell at fill.
func Proceeds(pos domain.Position, fill decimal.Decimal) decimal.Decimal {
	if !pos.EntryPrice.IsPositive() {
		return pos.Size
	}
	return pos.Size.Mul(fill).Div(pos.EntryPrice)
}

// dumpSignal reports coordinated selling, either flagged by ingestion or
// reported by the creator graph. Collaborator failure counts as no signal.
func (e *Engine) dumpSignal(ctx context.Context, pos domain.Position, up domain.PriceUpdate, log *slog.Logger) bool {
	if up.WhaleSelling {
		return true
	}
	if e.deps.Creators == nil {
		return false
	}
	selling, elapsed, err := callWithBudget(ctx, e.cfg.PredictBudget, func(ctx context.Context) (bool, error) {
		return e.deps.Creators.IsSelling(ctx, pos.Token, pos.CreatorAddresses)
	})
	if err != nil {
		log.Warn("creator activity check failed",
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return false
	}
	return selling
}

func (e *Engine) ignoreUpdate(up domain.PriceUpdate, reason string) Outcome {
	e.logger.Debug("price update ignored",
		slog.String("token", up.Token),
		slog.String("price", up.Price.String()),
		slog.String("reason", reason),
	)
	return Outcome{Action: ActionIgnored, Reason: reason}
}
