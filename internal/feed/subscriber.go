// Package feed moves candidate and price events from the ingestion bus into
// the decision engine.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/metrics"
)

// Default bus channel names shared with the ingestion side.
const (
	ChannelCandidates = "candidates"
	ChannelPrices     = "prices"
)

// Sink accepts decoded events. *Dispatcher satisfies it.
type Sink interface {
	Candidate(ctx context.Context, ev domain.CandidateEvent) error
	Price(ctx context.Context, up domain.PriceUpdate) error
}

var _ Sink = (*Dispatcher)(nil)

var (
	// ErrMalformed marks a payload that could not be decoded into an event.
	ErrMalformed = errors.New("feed: malformed payload")
	// ErrStale marks a candidate older than Config.MaxCandidateAge.
	ErrStale = errors.New("feed: stale event")

	errDuplicate = errors.New("feed: duplicate")
)

// Config names the channels, the duplicate window and the candidate age
// limit.
type Config struct {
	CandidateChannel string
	PriceChannel     string
	DedupTTL         time.Duration
	MaxCandidateAge  time.Duration
	CleanupInterval  time.Duration
}

func DefaultConfig() Config {
	return Config{
		CandidateChannel: ChannelCandidates,
		PriceChannel:     ChannelPrices,
		DedupTTL:         30 * time.Second,
		MaxCandidateAge:  time.Minute,
		CleanupInterval:  time.Minute,
	}
}

// Subscriber decodes bus payloads and forwards them to a Sink. Latest
// prices are written through to the price cache when one is configured.
type Subscriber struct {
	cfg     Config
	bus     domain.SignalBus
	sink    Sink
	prices  domain.PriceCache
	dedup   *Dedup
	metrics *metrics.Registry
	logger  *slog.Logger
	now     func() time.Time
}

// NewSubscriber creates a Subscriber. prices and m may be nil.
func NewSubscriber(cfg Config, bus domain.SignalBus, sink Sink, prices domain.PriceCache, m *metrics.Registry, logger *slog.Logger) *Subscriber {
	if cfg.CandidateChannel == "" {
		cfg.CandidateChannel = ChannelCandidates
	}
	if cfg.PriceChannel == "" {
		cfg.PriceChannel = ChannelPrices
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	return &Subscriber{
		cfg:     cfg,
		bus:     bus,
		sink:    sink,
		prices:  prices,
		dedup:   NewDedup(cfg.DedupTTL),
		metrics: m,
		logger:  logger.With(slog.String("component", "feed")),
		now:     time.Now,
	}
}

// Run subscribes to both channels and forwards events until ctx is done or
// a subscription closes.
func (s *Subscriber) Run(ctx context.Context) error {
	candidates, err := s.bus.Subscribe(ctx, s.cfg.CandidateChannel)
	if err != nil {
		return fmt.Errorf("feed: subscribe candidates: %w", err)
	}
	prices, err := s.bus.Subscribe(ctx, s.cfg.PriceChannel)
	if err != nil {
		return fmt.Errorf("feed: subscribe prices: %w", err)
	}
	s.logger.Info("feed started",
		slog.String("candidates", s.cfg.CandidateChannel),
		slog.String("prices", s.cfg.PriceChannel),
	)
	defer s.logger.Info("feed stopped")

	cleanup := time.NewTicker(s.cfg.CleanupInterval)
	defer cleanup.Stop()

	for {
		var (
			channel string
			data    []byte
			ok      bool
		)
		select {
		case <-ctx.Done():
			return nil
		case <-cleanup.C:
			s.dedup.Cleanup()
			continue
		case data, ok = <-candidates:
			channel = s.cfg.CandidateChannel
		case data, ok = <-prices:
			channel = s.cfg.PriceChannel
		}
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("feed: %s subscription closed", channel)
		}
		if err := s.Handle(ctx, channel, data); err != nil {
			if errors.Is(err, ErrDispatcherStopped) || ctx.Err() != nil {
				return nil
			}
			s.logger.Debug("feed message dropped",
				slog.String("channel", channel),
				slog.String("error", err.Error()),
				slog.Int("payload_len", len(data)),
			)
		}
	}
}

// Handle decodes one payload from channel and forwards it. Duplicates and
// stale candidates are counted and dropped without an error.
func (s *Subscriber) Handle(ctx context.Context, channel string, data []byte) error {
	var err error
	switch channel {
	case s.cfg.CandidateChannel:
		err = s.handleCandidate(ctx, data)
	case s.cfg.PriceChannel:
		err = s.handlePrice(ctx, data)
	default:
		err = fmt.Errorf("feed: unknown channel %q", channel)
	}

	switch {
	case err == nil:
		s.metrics.ObserveFeed(channel, "ok")
	case errors.Is(err, errDuplicate):
		s.metrics.ObserveFeed(channel, "duplicate")
		return nil
	case errors.Is(err, ErrStale):
		s.metrics.ObserveFeed(channel, "stale")
		return nil
	case errors.Is(err, ErrMalformed):
		s.metrics.ObserveFeed(channel, "malformed")
	default:
		s.metrics.ObserveFeed(channel, "dropped")
	}
	return err
}

func (s *Subscriber) handleCandidate(ctx context.Context, data []byte) error {
	if s.dedup.Seen(s.cfg.CandidateChannel, data) {
		return errDuplicate
	}
	ev, err := DecodeCandidate(data)
	if err != nil {
		return err
	}
	if limit := s.cfg.MaxCandidateAge; limit > 0 {
		if age := s.now().Sub(ev.ObservedAt); age > limit {
			s.logger.Info("stale candidate skipped",
				slog.String("token", ev.Token),
				slog.Duration("age", age),
				slog.Time("observed_at", ev.ObservedAt),
			)
			return ErrStale
		}
	}
	return s.sink.Candidate(ctx, ev)
}

// handlePrice dedups on token and observed_at. Unstamped ticks carry no
// identity, so a repeated identical payload is a new tick and passes.
func (s *Subscriber) handlePrice(ctx context.Context, data []byte) error {
	up, stamped, err := decodePrice(data)
	if err != nil {
		return err
	}
	if stamped && s.dedup.Seen(s.cfg.PriceChannel, priceKey(up)) {
		return errDuplicate
	}
	if s.prices != nil {
		if err := s.prices.Put(ctx, domain.Quote{Token: up.Token, Price: up.Price, At: up.ObservedAt}); err != nil {
			s.logger.Warn("price cache write failed",
				slog.String("token", up.Token),
				slog.String("error", err.Error()),
			)
		}
	}
	return s.sink.Price(ctx, up)
}

// DecodeCandidate parses a candidate payload. Missing timestamps default to
// now.
func DecodeCandidate(data []byte) (domain.CandidateEvent, error) {
	var ev domain.CandidateEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	ev.Token = strings.TrimSpace(ev.Token)
	if ev.Token == "" {
		return ev, fmt.Errorf("%w: missing token", ErrMalformed)
	}
	if ev.ObservedAt.IsZero() {
		ev.ObservedAt = time.Now().UTC()
	}
	return ev, nil
}

// DecodePrice parses a price payload. Missing timestamps default to now.
func DecodePrice(data []byte) (domain.PriceUpdate, error) {
	up, _, err := decodePrice(data)
	return up, err
}

// decodePrice also reports whether the payload carried its own timestamp.
func decodePrice(data []byte) (domain.PriceUpdate, bool, error) {
	var up domain.PriceUpdate
	if err := json.Unmarshal(data, &up); err != nil {
		return up, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	up.Token = strings.TrimSpace(up.Token)
	if up.Token == "" {
		return up, false, fmt.Errorf("%w: missing token", ErrMalformed)
	}
	stamped := !up.ObservedAt.IsZero()
	if !stamped {
		up.ObservedAt = time.Now().UTC()
	}
	return up, stamped, nil
}

func priceKey(up domain.PriceUpdate) []byte {
	return []byte(up.Token + "|" + up.ObservedAt.UTC().Format(time.RFC3339Nano))
}
