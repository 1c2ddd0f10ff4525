package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// Entry is the JSON shape of a TradeRecord, shared by the log files, the
// Redis trade stream, the operator API and report exports.
type Entry struct {
	ID         string          `json:"id"`
	Token      string          `json:"token"`
	Action     string          `json:"action"`
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	LatencyMS  float64         `json:"latency_ms"`
	Venue      string          `json:"venue"`
	TxID       string          `json:"txid,omitempty"`
	Mode       string          `json:"mode"`
	DumpSignal bool            `json:"whale_selling,omitempty"`
	ExitReason string          `json:"exit_reason,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ToEntry converts a record to its JSON shape.
func ToEntry(rec domain.TradeRecord) Entry {
	return Entry{
		ID:         rec.ID,
		Token:      rec.Token,
		Action:     string(rec.Action),
		Price:      rec.Price,
		Size:       rec.Size,
		LatencyMS:  float64(rec.Latency) / float64(time.Millisecond),
		Venue:      rec.Venue,
		TxID:       rec.TxID,
		Mode:       string(rec.Mode),
		DumpSignal: rec.DumpSignal,
		ExitReason: rec.ExitReason,
		Timestamp:  rec.Timestamp.UTC(),
	}
}

// Record converts back to a domain record.
func (e Entry) Record() domain.TradeRecord {
	return domain.TradeRecord{
		ID:         e.ID,
		Token:      e.Token,
		Action:     domain.TradeAction(e.Action),
		Price:      e.Price,
		Size:       e.Size,
		Latency:    time.Duration(e.LatencyMS * float64(time.Millisecond)),
		Venue:      e.Venue,
		TxID:       e.TxID,
		Mode:       domain.TradeMode(e.Mode),
		DumpSignal: e.DumpSignal,
		ExitReason: e.ExitReason,
		Timestamp:  e.Timestamp,
	}
}

// Encode marshals a record as one JSON object.
func Encode(rec domain.TradeRecord) ([]byte, error) {
	b, err := json.Marshal(ToEntry(rec))
	if err != nil {
		return nil, fmt.Errorf("journal: encode %s: %w", rec.ID, err)
	}
	return b, nil
}

// Decode unmarshals one JSON object into a record.
func Decode(b []byte) (domain.TradeRecord, error) {
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return domain.TradeRecord{}, fmt.Errorf("journal: decode: %w", err)
	}
	switch domain.TradeAction(e.Action) {
	case domain.TradeActionBuy, domain.TradeActionSell:
	default:
		return domain.TradeRecord{}, fmt.Errorf("journal: decode: unknown action %q", e.Action)
	}
	return e.Record(), nil
}
