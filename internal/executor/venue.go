package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// Fill is what a venue returns for an accepted order.
type Fill struct {
	TxID  string
	Price decimal.Decimal // zero means the venue did not report a price
}

// Venue is one on-chain liquidity source. Submit must return an error
// wrapping domain.ErrVenueUnavailable or domain.ErrVenueRejected when it
// cannot fill the order.
type Venue interface {
	Name() string
	Submit(ctx context.Context, order domain.OrderRequest) (Fill, error)
}

// VenueFunc adapts a function to the Venue interface.
type VenueFunc struct {
	VenueName string
	Fn        func(ctx context.Context, order domain.OrderRequest) (Fill, error)
}

func (v VenueFunc) Name() string { return v.VenueName }

func (v VenueFunc) Submit(ctx context.Context, order domain.OrderRequest) (Fill, error) {
	return v.Fn(ctx, order)
}

type unimplementedVenue struct{ name string }

// Unimplemented returns a venue that always reports itself unavailable.
func Unimplemented(name string) Venue {
	return unimplementedVenue{name: name}
}

func (v unimplementedVenue) Name() string { return v.name }

func (v unimplementedVenue) Submit(context.Context, domain.OrderRequest) (Fill, error) {
	return Fill{}, fmt.Errorf("%s: adapter not implemented: %w", v.name, domain.ErrVenueUnavailable)
}

// Known venue names, in the default priority order.
const (
	VenueJupiter = "jupiter"
	VenueRaydium = "raydium"
	VenueOrca    = "orca"
)

// DefaultVenueOrder is the aggregator first, then the two direct pools.
var DefaultVenueOrder = []string{VenueJupiter, VenueRaydium, VenueOrca}

// BuildVenues resolves configured names into adapters, preserving order.
// Swap transaction construction lives outside this process, so every known
// venue is currently an unavailable adapter and the gateway degrades to
// overall failure in real mode.
func BuildVenues(names []string) ([]Venue, error) {
	venues := make([]Venue, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch name {
		case VenueJupiter, VenueRaydium, VenueOrca:
		default:
			return nil, fmt.Errorf("executor: unknown venue %q", raw)
		}
		if seen[name] {
			return nil, fmt.Errorf("executor: venue %q listed twice", name)
		}
		seen[name] = true
		venues = append(venues, Unimplemented(name))
	}
	return venues, nil
}
