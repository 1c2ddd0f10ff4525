package feed

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/jpillora/backoff"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// StreamPoller replays durable streams into a Subscriber. Each stream maps to
// the pub/sub channel whose decoder should handle it. Dedup in the
// Subscriber absorbs overlap with live pub/sub delivery.
type StreamPoller struct {
	bus     domain.SignalBus
	sub     *Subscriber
	streams map[string]string // stream -> channel
	startID string
	batch   int
	logger  *slog.Logger
	now     func() time.Time
}

// StartNew reads only entries appended after the poller starts.
const StartNew = "$"

// NewStreamPoller creates a poller. startID is the id to read after: "0"
// replays the whole stream, StartNew (the default) skips history.
func NewStreamPoller(bus domain.SignalBus, sub *Subscriber, streams map[string]string, startID string, batch int, logger *slog.Logger) *StreamPoller {
	if startID == "" {
		startID = StartNew
	}
	if batch <= 0 {
		batch = 100
	}
	return &StreamPoller{
		bus:     bus,
		sub:     sub,
		streams: streams,
		startID: startID,
		batch:   batch,
		logger:  logger.With(slog.String("component", "stream_poller")),
		now:     time.Now,
	}
}

// firstID turns StartNew into the stream id of the current millisecond.
// Polls are non-blocking reads, so "$" itself would never advance.
func (p *StreamPoller) firstID() string {
	if p.startID != StartNew {
		return p.startID
	}
	return strconv.FormatInt(p.now().UnixMilli(), 10) + "-0"
}

// Run polls every stream until ctx is done. Idle or failing polls back off
// up to two seconds.
func (p *StreamPoller) Run(ctx context.Context) error {
	if len(p.streams) == 0 {
		p.logger.Info("no streams configured, exiting")
		return nil
	}
	first := p.firstID()
	last := make(map[string]string, len(p.streams))
	for stream := range p.streams {
		last[stream] = first
	}
	p.logger.Info("stream poller started", slog.String("from", first), slog.Int("streams", len(p.streams)))
	b := &backoff.Backoff{Min: 10 * time.Millisecond, Max: 2 * time.Second, Factor: 2, Jitter: true}

	for {
		got, err := p.pollOnce(ctx, last)
		if err != nil {
			if errors.Is(err, ErrDispatcherStopped) || ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("stream poll failed", slog.String("error", err.Error()))
		}
		if got > 0 {
			b.Reset()
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(b.Duration()):
		}
	}
}

func (p *StreamPoller) pollOnce(ctx context.Context, last map[string]string) (int, error) {
	total := 0
	for stream, channel := range p.streams {
		msgs, err := p.bus.StreamRead(ctx, stream, last[stream], p.batch)
		if err != nil {
			return total, err
		}
		for _, m := range msgs {
			last[stream] = m.ID
			if err := p.sub.Handle(ctx, channel, m.Payload); err != nil {
				if errors.Is(err, ErrDispatcherStopped) {
					return total, err
				}
				p.logger.Debug("stream message dropped",
					slog.String("stream", stream),
					slog.String("id", m.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		total += len(msgs)
	}
	return total, nil
}
