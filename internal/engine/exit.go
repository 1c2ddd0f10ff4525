package engine

import (
	"github.com/shopspring/decimal"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// ExitReason names the rule that closed a position.
type ExitReason int

const (
	ExitNone ExitReason = iota
	ExitTrailingStop
	ExitTakeProfit
	ExitStopLoss
	ExitDumpSignal
)

func (r ExitReason) String() string {
	switch r {
	case ExitTrailingStop:
		return "trailing_stop"
	case ExitTakeProfit:
		return "take_profit"
	case ExitStopLoss:
		return "stop_loss"
	case ExitDumpSignal:
		return "dump_signal"
	default:
		return "none"
	}
}

var one = decimal.NewFromInt(1)

// EvaluateExit applies the price rules in priority order: trailing stop,
// take profit, stop loss. The first match wins, so a spike that retraces is
// exited by the trailing stop before take profit is considered. The dump
// signal needs external input and is checked by the caller.
func EvaluateExit(pos domain.Position, price, trailingFraction, sellMultiplier decimal.Decimal) ExitReason {
	peak := pos.PeakPrice
	if price.GreaterThan(peak) {
		peak = price
	}
	if trailingFraction.IsPositive() {
		floor := peak.Mul(one.Sub(trailingFraction))
		if price.LessThan(floor) {
			return ExitTrailingStop
		}
	}

	ret := pos.Return(price)
	if ret.GreaterThanOrEqual(sellMultiplier) {
		return ExitTakeProfit
	}
	if ret.LessThan(one) {
		return ExitStopLoss
	}
	return ExitNone
}
