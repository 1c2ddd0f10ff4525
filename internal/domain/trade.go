package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeAction is the direction of an executed order.
type TradeAction string

const (
	TradeActionBuy  TradeAction = "buy"
	TradeActionSell TradeAction = "sell"
)

// TradeMode separates paper trades from trades that reached a venue.
type TradeMode string

const (
	TradeModeSimulation TradeMode = "simulation"
	TradeModeReal       TradeMode = "real"
)

// VenueSimulated is recorded as the venue of every simulated fill.
const VenueSimulated = "simulated"

// TradeRecord is appended once per executed order and never modified.
type TradeRecord struct {
	ID         string
	Token      string
	Action     TradeAction
	Price      decimal.Decimal // fill price
	Size       decimal.Decimal
	Latency    time.Duration
	Venue      string // venue name or VenueSimulated
	TxID       string // empty for simulated fills
	Mode       TradeMode
	DumpSignal bool   // sells only
	ExitReason string // sells only
	Timestamp  time.Time
}

// IsSimulated reports whether the record never touched a venue.
func (r TradeRecord) IsSimulated() bool {
	return r.Venue == VenueSimulated
}
