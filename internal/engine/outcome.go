package engine

import "github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"

// Action is what an evaluation ended up doing.
type Action string

const (
	ActionSkip    Action = "skip" // entry declined; not an error
	ActionBought  Action = "bought"
	ActionSold    Action = "sold"
	ActionHold    Action = "hold"    // exit rules did not fire
	ActionFailed  Action = "failed"  // order failed; state restored
	ActionIgnored Action = "ignored" // no open position for a price update
)

// Skip and ignore reasons.
const (
	ReasonInvalidEvent        = "invalid_event"
	ReasonDuplicate           = "duplicate_position"
	ReasonLowTrust            = "low_trust"
	ReasonRiskUnavailable     = "risk_unavailable"
	ReasonPredictedNegative   = "predicted_negative"
	ReasonPredictTimeout      = "predict_timeout"
	ReasonInsufficientCapital = "insufficient_capital"
	ReasonNoPosition          = "no_position"
	ReasonClosing             = "position_closing"
)

// Outcome reports the result of one evaluation.
type Outcome struct {
	Action Action
	Reason string
	Exit   ExitReason
	// Trade is set when an order executed.
	Trade *domain.TradeRecord
}
