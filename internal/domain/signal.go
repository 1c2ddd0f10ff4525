package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CandidateEvent announces a token that may be worth entering.
type CandidateEvent struct {
	Token         string          `json:"token"`
	ObservedPrice decimal.Decimal `json:"observed_price"`
	ObservedAt    time.Time       `json:"observed_at,omitempty"`
}

// PriceUpdate carries the latest price for a token, plus an optional
// coordinated sell-off flag from the ingestion side.
type PriceUpdate struct {
	Token        string          `json:"token"`
	Price        decimal.Decimal `json:"price"`
	WhaleSelling bool            `json:"whale_selling,omitempty"`
	ObservedAt   time.Time       `json:"observed_at,omitempty"`
}

// BotStatus is a summary of the bot's current operational state.
type BotStatus struct {
	Mode             string
	Simulation       bool
	UptimeSeconds    int64
	OpenPositions    int
	AvailableCapital decimal.Decimal
}
