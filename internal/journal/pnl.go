package journal

import (
	"github.com/shopspring/decimal"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// PnL is realized profit and loss reconstructed from buy/sell pairs.
type PnL struct {
	Simulation decimal.Decimal `json:"simulation"`
	Real       decimal.Decimal `json:"real"`
	ClosedSim  int             `json:"closed_simulation"`
	ClosedReal int             `json:"closed_real"`
	Wins       int             `json:"wins"`
	Losses     int             `json:"losses"`
	// Open counts buys with no matching sell yet.
	Open int `json:"open"`
}

// Total is realized P&L across both modes.
func (p PnL) Total() decimal.Decimal {
	return p.Simulation.Add(p.Real)
}

type pairKey struct {
	token string
	mode  domain.TradeMode
}

// Tracker pairs each sell with the oldest unmatched buy of the same token
// and mode. A trade's P&L is size × (sell / buy − 1). It is not safe for
// concurrent use.
type Tracker struct {
	open map[pairKey][]domain.TradeRecord
	pnl  PnL
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{open: make(map[pairKey][]domain.TradeRecord)}
}

// Add folds one record into the running totals. Sells with no prior buy
// are ignored.
func (t *Tracker) Add(rec domain.TradeRecord) {
	key := pairKey{token: rec.Token, mode: rec.Mode}
	switch rec.Action {
	case domain.TradeActionBuy:
		t.open[key] = append(t.open[key], rec)
		t.pnl.Open++
	case domain.TradeActionSell:
		buys := t.open[key]
		if len(buys) == 0 {
			return
		}
		buy := buys[0]
		if len(buys) == 1 {
			delete(t.open, key)
		} else {
			t.open[key] = buys[1:]
		}
		t.pnl.Open--
		if buy.Price.IsZero() {
			return
		}

		gain := buy.Size.Mul(rec.Price.Div(buy.Price).Sub(decimal.NewFromInt(1)))
		if rec.Mode == domain.TradeModeReal {
			t.pnl.Real = t.pnl.Real.Add(gain)
			t.pnl.ClosedReal++
		} else {
			t.pnl.Simulation = t.pnl.Simulation.Add(gain)
			t.pnl.ClosedSim++
		}
		if gain.IsPositive() {
			t.pnl.Wins++
		} else if gain.IsNegative() {
			t.pnl.Losses++
		}
	}
}

// Snapshot returns the current totals.
func (t *Tracker) Snapshot() PnL {
	return t.pnl
}

// RealizedPnL reconstructs P&L from a full trade history in order.
func RealizedPnL(records []domain.TradeRecord) PnL {
	t := NewTracker()
	for _, rec := range records {
		t.Add(rec)
	}
	return t.Snapshot()
}
