package executor

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// guardedVenue wraps a venue with its own circuit breaker and rate limiter
// so a failing or throttled venue is skipped without a network round trip.
type guardedVenue struct {
	venue   Venue
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter // nil means unlimited
}

func newGuardedVenue(v Venue, cfg Config) *guardedVenue {
	st := gobreaker.Settings{Name: v.Name()}
	st.Interval = cfg.BreakerInterval
	st.Timeout = cfg.BreakerCooldown
	threshold := cfg.BreakerFailures
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return threshold > 0 && counts.ConsecutiveFailures >= threshold
	}
	// A rejection means the venue answered; only unavailability trips.
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, domain.ErrVenueRejected)
	}

	g := &guardedVenue{venue: v, breaker: gobreaker.NewCircuitBreaker(st)}
	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return g
}

func (g *guardedVenue) allow() bool {
	return g.limiter == nil || g.limiter.Allow()
}

// breakerOpen reports whether err came from the breaker rather than the venue.
func breakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func defaultBreakerInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return 60 * time.Second
	}
	return d
}
