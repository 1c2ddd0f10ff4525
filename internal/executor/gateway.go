// Package executor routes venue-agnostic orders through an ordered chain of
// venue adapters.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/metrics"
)

// Config controls gateway behaviour.
type Config struct {
	// Simulate fills every order locally without touching any venue.
	Simulate bool
	// LatencyTarget is logged against, never enforced.
	LatencyTarget time.Duration
	// VenueTimeout bounds a single venue attempt. Zero means no bound
	// beyond the caller's context.
	VenueTimeout time.Duration

	RatePerSecond float64
	RateBurst     int

	BreakerFailures uint32
	BreakerInterval time.Duration
	BreakerCooldown time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		LatencyTarget:   150 * time.Millisecond,
		VenueTimeout:    2 * time.Second,
		RatePerSecond:   10,
		RateBurst:       5,
		BreakerFailures: 3,
		BreakerInterval: 60 * time.Second,
		BreakerCooldown: 30 * time.Second,
	}
}

// Gateway submits orders to the first venue that accepts them.
type Gateway struct {
	cfg     Config
	venues  []*guardedVenue
	metrics *metrics.Registry
	logger  *slog.Logger
}

// New creates a Gateway trying venues in the given order.
func New(cfg Config, venues []Venue, m *metrics.Registry, logger *slog.Logger) *Gateway {
	cfg.BreakerInterval = defaultBreakerInterval(cfg.BreakerInterval)
	g := &Gateway{
		cfg:     cfg,
		metrics: m,
		logger:  logger.With(slog.String("component", "gateway")),
	}
	for _, v := range venues {
		g.venues = append(g.venues, newGuardedVenue(v, cfg))
	}
	return g
}

// Simulated reports whether the gateway fills orders locally.
func (g *Gateway) Simulated() bool { return g.cfg.Simulate }

// Submit executes order and always returns a result; failures are reported
// in the result rather than as an error. Latency covers the whole chain.
func (g *Gateway) Submit(ctx context.Context, order domain.OrderRequest) domain.ExecutionResult {
	if g.cfg.Simulate {
		g.metrics.ObserveGateway(string(order.Side), "simulated", 0)
		return domain.ExecutionResult{
			Success:   true,
			Venue:     domain.VenueSimulated,
			FillPrice: order.Price,
			Message:   "simulated fill",
		}
	}

	start := time.Now()
	res := g.submitChain(ctx, order)
	res.Latency = time.Since(start)

	outcome := "ok"
	if !res.Success {
		outcome = string(res.ErrorKind)
	}
	g.metrics.ObserveGateway(string(order.Side), outcome, res.Latency)

	if g.cfg.LatencyTarget > 0 && res.Latency > g.cfg.LatencyTarget {
		g.logger.Warn("order latency above target",
			slog.String("token", order.Token),
			slog.String("side", string(order.Side)),
			slog.Duration("latency", res.Latency),
			slog.Duration("target", g.cfg.LatencyTarget),
		)
	}
	return res
}

func (g *Gateway) submitChain(ctx context.Context, order domain.OrderRequest) domain.ExecutionResult {
	if len(g.venues) == 0 {
		return domain.ExecutionResult{
			Message:   "no venues configured",
			ErrorKind: domain.ExecErrUnavailable,
		}
	}

	failures := make([]string, 0, len(g.venues))
	for _, gv := range g.venues {
		name := gv.venue.Name()
		if ctx.Err() != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, ctx.Err()))
			return domain.ExecutionResult{
				Message:   "cancelled: " + strings.Join(failures, "; "),
				ErrorKind: domain.ExecErrCancelled,
			}
		}
		if !gv.allow() {
			g.metrics.ObserveVenue(name, "rate_limited")
			failures = append(failures, name+": rate limited")
			continue
		}

		fill, err := g.attempt(ctx, gv, order)
		if err == nil {
			g.metrics.ObserveVenue(name, "ok")
			price := fill.Price
			if price.IsZero() {
				price = order.Price
			}
			g.logger.Info("order filled",
				slog.String("token", order.Token),
				slog.String("side", string(order.Side)),
				slog.String("amount", order.Size.String()),
				slog.String("venue", name),
				slog.String("tx_id", fill.TxID),
			)
			return domain.ExecutionResult{
				Success:   true,
				TxID:      fill.TxID,
				Venue:     name,
				FillPrice: price,
				Message:   "filled by " + name,
			}
		}

		result := "unavailable"
		switch {
		case breakerOpen(err):
			result = "open_circuit"
		case errors.Is(err, domain.ErrVenueRejected):
			result = "rejected"
		}
		g.metrics.ObserveVenue(name, result)
		g.logger.Warn("venue attempt failed, falling back",
			slog.String("token", order.Token),
			slog.String("side", string(order.Side)),
			slog.String("amount", order.Size.String()),
			slog.String("venue", name),
			slog.String("error", err.Error()),
		)
		failures = append(failures, fmt.Sprintf("%s: %v", name, err))
	}

	return domain.ExecutionResult{
		Message:   "all venues failed: " + strings.Join(failures, "; "),
		ErrorKind: domain.ExecErrExhausted,
	}
}

func (g *Gateway) attempt(ctx context.Context, gv *guardedVenue, order domain.OrderRequest) (Fill, error) {
	out, err := gv.breaker.Execute(func() (interface{}, error) {
		vctx := ctx
		if g.cfg.VenueTimeout > 0 {
			var cancel context.CancelFunc
			vctx, cancel = context.WithTimeout(ctx, g.cfg.VenueTimeout)
			defer cancel()
		}
		return gv.venue.Submit(vctx, order)
	})
	if err != nil {
		return Fill{}, err
	}
	fill, _ := out.(Fill)
	return fill, nil
}
