package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderRequest is a venue-agnostic order handed to the execution gateway.
type OrderRequest struct {
	Token string
	Side  OrderSide
	Size  decimal.Decimal
	// Price is the last observed price. Venues may ignore it; simulated fills use it.
	Price decimal.Decimal
}

// ExecutionErrorKind classifies a failed execution.
type ExecutionErrorKind string

const (
	ExecErrNone        ExecutionErrorKind = ""
	ExecErrUnavailable ExecutionErrorKind = "unavailable"
	ExecErrRejected    ExecutionErrorKind = "rejected"
	ExecErrExhausted   ExecutionErrorKind = "exhausted"
	ExecErrCancelled   ExecutionErrorKind = "cancelled"
)

// ExecutionResult is returned by the execution gateway for every submission.
type ExecutionResult struct {
	Success   bool
	Latency   time.Duration // end-to-end across the whole venue chain
	TxID      string        // empty on failure and for simulated fills
	Venue     string
	FillPrice decimal.Decimal
	Message   string
	ErrorKind ExecutionErrorKind
}
