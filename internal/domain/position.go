package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionState is the lifecycle state of a held token.
type PositionState string

const (
	PositionStateOpen    PositionState = "open"
	PositionStateClosing PositionState = "closing"
)

// Position is one open token holding. It lives in the registry only while
// its state is open or closing.
type Position struct {
	Token            string
	EntryPrice       decimal.Decimal
	Size             decimal.Decimal // base currency committed at entry
	PeakPrice        decimal.Decimal // never below EntryPrice
	CreatorAddresses []string
	OpenedAt         time.Time
	State            PositionState
	Mode             TradeMode
}

// Clone returns a copy that shares no slices with p.
func (p Position) Clone() Position {
	if p.CreatorAddresses != nil {
		addrs := make([]string, len(p.CreatorAddresses))
		copy(addrs, p.CreatorAddresses)
		p.CreatorAddresses = addrs
	}
	return p
}

// Return is the price multiple since entry.
func (p Position) Return(price decimal.Decimal) decimal.Decimal {
	if p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	return price.Div(p.EntryPrice)
}
