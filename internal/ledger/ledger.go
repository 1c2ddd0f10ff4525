// Package ledger owns the single pool of investable capital.
package ledger

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// Ledger tracks total and available capital. Every mutation happens inside
// one critical section so concurrent reservations cannot double-spend.
type Ledger struct {
	mu         sync.Mutex
	configured bool
	total      decimal.Decimal
	available  decimal.Decimal
	ceiling    decimal.Decimal // zero means unbounded
}

// New creates an unconfigured ledger. A positive ceiling caps available
// capital on release; pass decimal.Zero for no cap.
func New(ceiling decimal.Decimal) *Ledger {
	if ceiling.IsNegative() {
		ceiling = decimal.Zero
	}
	return &Ledger{ceiling: ceiling}
}

// SetCapital replaces both total and available capital.
func (l *Ledger) SetCapital(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("ledger: set capital %s: %w", amount, domain.ErrInvalidAmount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total = amount
	l.available = l.clamp(amount)
	l.configured = true
	return nil
}

// Reserve debits amount if it is covered by available capital. A refusal is
// reported as false with a nil error; it is a normal skip, not a failure.
func (l *Ledger) Reserve(amount decimal.Decimal) (bool, error) {
	if !amount.IsPositive() {
		return false, fmt.Errorf("ledger: reserve %s: %w", amount, domain.ErrInvalidAmount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.configured {
		return false, fmt.Errorf("ledger: reserve: %w", domain.ErrCapitalNotConfigured)
	}
	if l.available.LessThan(amount) {
		return false, nil
	}
	l.available = l.available.Sub(amount)
	return true, nil
}

// Release credits amount back, either a refund of a failed reservation or
// sell proceeds.
func (l *Ledger) Release(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("ledger: release %s: %w", amount, domain.ErrInvalidAmount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.configured {
		return fmt.Errorf("ledger: release: %w", domain.ErrCapitalNotConfigured)
	}
	l.available = l.clamp(l.available.Add(amount))
	return nil
}

// Available returns a snapshot of available capital.
func (l *Ledger) Available() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.available
}

// Total returns the capital last set by SetCapital.
func (l *Ledger) Total() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Configured reports whether SetCapital has ever been called.
func (l *Ledger) Configured() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.configured
}

func (l *Ledger) clamp(v decimal.Decimal) decimal.Decimal {
	if l.ceiling.IsPositive() && v.GreaterThan(l.ceiling) {
		return l.ceiling
	}
	return v
}
