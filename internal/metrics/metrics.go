// Package metrics holds the Prometheus collectors for the trading bot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all bot collectors on a private prometheus.Registry so
// tests can build as many as they like.
type Registry struct {
	reg *prometheus.Registry

	// Engine decisions by path (entry|exit) and outcome.
	Decisions *prometheus.CounterVec
	// Exits by rule.
	Exits *prometheus.CounterVec
	// Predictive checks that ran past their budget.
	LatencyBreaches prometheus.Counter

	// Venue attempts by venue and result (ok|unavailable|rejected|open_circuit|rate_limited).
	VenueAttempts *prometheus.CounterVec
	// End-to-end gateway latency by side and result.
	GatewayLatency *prometheus.HistogramVec

	AvailableCapital prometheus.Gauge
	OpenPositions    prometheus.Gauge

	// Journal records dropped because a subscriber was full.
	JournalDrops *prometheus.CounterVec
	// Feed messages by channel and result (ok, duplicate, stale, malformed, dropped).
	FeedMessages *prometheus.CounterVec
}

// New creates and registers every collector.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solbot_decisions_total",
				Help: "Engine decisions by path and outcome",
			},
			[]string{"path", "outcome"},
		),
		Exits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solbot_exits_total",
				Help: "Exit rules that fired",
			},
			[]string{"reason"},
		),
		LatencyBreaches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "solbot_predict_latency_breaches_total",
				Help: "Predictive checks that exceeded their latency budget",
			},
		),
		VenueAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solbot_venue_attempts_total",
				Help: "Order submissions per venue by result",
			},
			[]string{"venue", "result"},
		),
		GatewayLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solbot_gateway_latency_ms",
				Help:    "End-to-end order latency across the venue chain in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 150, 250, 500, 1000, 2500, 5000},
			},
			[]string{"side", "result"},
		),
		AvailableCapital: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "solbot_available_capital",
				Help: "Capital available for new entries",
			},
		),
		OpenPositions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "solbot_open_positions",
				Help: "Positions currently held",
			},
		),
		JournalDrops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solbot_journal_drops_total",
				Help: "Trade records dropped for a slow subscriber",
			},
			[]string{"subscriber"},
		),
		FeedMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solbot_feed_messages_total",
				Help: "Feed messages by channel and result",
			},
			[]string{"channel", "result"},
		),
	}
	r.reg.MustRegister(
		r.Decisions,
		r.Exits,
		r.LatencyBreaches,
		r.VenueAttempts,
		r.GatewayLatency,
		r.AvailableCapital,
		r.OpenPositions,
		r.JournalDrops,
		r.FeedMessages,
		collectors.NewGoCollector(),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// The Observe helpers are safe on a nil *Registry so components can run
// without metrics in tests.

func (r *Registry) ObserveDecision(path, outcome string) {
	if r == nil {
		return
	}
	r.Decisions.WithLabelValues(path, outcome).Inc()
}

func (r *Registry) ObserveExit(reason string) {
	if r == nil {
		return
	}
	r.Exits.WithLabelValues(reason).Inc()
}

func (r *Registry) ObserveLatencyBreach() {
	if r == nil {
		return
	}
	r.LatencyBreaches.Inc()
}

func (r *Registry) ObserveVenue(venue, result string) {
	if r == nil {
		return
	}
	r.VenueAttempts.WithLabelValues(venue, result).Inc()
}

func (r *Registry) ObserveGateway(side, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.GatewayLatency.WithLabelValues(side, result).Observe(float64(d) / float64(time.Millisecond))
}

func (r *Registry) SetCapital(v float64) {
	if r == nil {
		return
	}
	r.AvailableCapital.Set(v)
}

func (r *Registry) SetOpenPositions(n int) {
	if r == nil {
		return
	}
	r.OpenPositions.Set(float64(n))
}

func (r *Registry) ObserveJournalDrop(subscriber string) {
	if r == nil {
		return
	}
	r.JournalDrops.WithLabelValues(subscriber).Inc()
}

func (r *Registry) ObserveFeed(channel, result string) {
	if r == nil {
		return
	}
	r.FeedMessages.WithLabelValues(channel, result).Inc()
}
