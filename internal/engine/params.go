package engine

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// Parameters are the tunable knobs. They are swapped as a whole so an
// evaluation always sees one consistent set.
type Parameters struct {
	BuyAmount      decimal.Decimal `json:"buy_amount"`
	SellMultiplier decimal.Decimal `json:"sell_multiplier"`
}

// Validate checks that the parameters can drive an evaluation.
func (p Parameters) Validate() error {
	if !p.BuyAmount.IsPositive() {
		return fmt.Errorf("engine: buy amount %s must be positive: %w", p.BuyAmount, domain.ErrInvalidAmount)
	}
	if !p.SellMultiplier.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("engine: sell multiplier %s must be above 1: %w", p.SellMultiplier, domain.ErrInvalidAmount)
	}
	return nil
}

// SetParameters atomically replaces the parameters. Evaluations already in
// flight keep the set they started with.
func (e *Engine) SetParameters(buyAmount, sellMultiplier decimal.Decimal) error {
	_, err := e.UpdateParameters(func(Parameters) Parameters {
		return Parameters{BuyAmount: buyAmount, SellMultiplier: sellMultiplier}
	})
	return err
}

// UpdateParameters applies fn to the current parameters and stores the
// result if it validates. fn may run more than once when updates race.
func (e *Engine) UpdateParameters(fn func(Parameters) Parameters) (Parameters, error) {
	for {
		cur := e.params.Load()
		next := fn(*cur)
		if err := next.Validate(); err != nil {
			return *cur, err
		}
		if e.params.CompareAndSwap(cur, &next) {
			e.logger.Info("parameters updated",
				slog.String("buy_amount", next.BuyAmount.String()),
				slog.String("sell_multiplier", next.SellMultiplier.String()),
			)
			return next, nil
		}
	}
}

// Parameters returns the current parameter set.
func (e *Engine) Parameters() Parameters {
	return *e.params.Load()
}
