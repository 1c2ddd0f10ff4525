package journal

import (
	"context"
	"fmt"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// TradeStream is the durable stream executed trades are appended to for
// out-of-process consumers such as the parameter tuner.
const TradeStream = "trades"

var _ Appender = (*StreamSink)(nil)

// StreamSink appends each record to a SignalBus stream.
type StreamSink struct {
	bus    domain.SignalBus
	stream string
}

// NewStreamSink creates a sink writing to stream on bus.
func NewStreamSink(bus domain.SignalBus, stream string) *StreamSink {
	if stream == "" {
		stream = TradeStream
	}
	return &StreamSink{bus: bus, stream: stream}
}

func (s *StreamSink) Append(ctx context.Context, rec domain.TradeRecord) error {
	payload, err := Encode(rec)
	if err != nil {
		return err
	}
	if err := s.bus.StreamAppend(ctx, s.stream, payload); err != nil {
		return fmt.Errorf("journal: stream append: %w", err)
	}
	return nil
}
