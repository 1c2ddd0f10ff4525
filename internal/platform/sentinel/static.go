package sentinel

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/engine"
)

// Static answers every question with fixed values. It stands in for the
// sentinel service in offline simulation runs.
type Static struct {
	TrustScore float64
	Breakout   bool
}

var (
	_ engine.RiskScorer   = Static{}
	_ engine.CreatorGraph = Static{}
)

func (s Static) Score(context.Context, string) (float64, error) { return s.TrustScore, nil }

func (s Static) PredictedBreakout(context.Context, string, decimal.Decimal) (bool, error) {
	return s.Breakout, nil
}

func (Static) AssociatedAddresses(context.Context, string) ([]string, error) { return nil, nil }

func (Static) IsSelling(context.Context, string, []string) (bool, error) { return false, nil }
