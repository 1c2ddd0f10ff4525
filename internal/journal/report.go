package journal

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

var csvHeader = []string{
	"timestamp", "token", "action", "price", "size", "mode",
	"venue", "latency_ms", "whale_selling", "exit_reason",
}

// WriteCSV exports records as CSV with a header row.
func WriteCSV(w io.Writer, records []domain.TradeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("journal: write csv header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.Timestamp.UTC().Format(time.RFC3339Nano),
			rec.Token,
			string(rec.Action),
			rec.Price.String(),
			rec.Size.String(),
			string(rec.Mode),
			rec.Venue,
			strconv.FormatInt(rec.Latency.Milliseconds(), 10),
			strconv.FormatBool(rec.DumpSignal),
			rec.ExitReason,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("journal: write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("journal: flush csv: %w", err)
	}
	return nil
}

// ReportParameters are the engine parameters in force when a report was
// produced.
type ReportParameters struct {
	BuyAmount      decimal.Decimal `json:"buy_amount"`
	SellMultiplier decimal.Decimal `json:"sell_multiplier"`
}

// Report is the JSON document consumed by the tuning collaborator.
type Report struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Results     []Entry          `json:"results"`
	ProfitLoss  PnL              `json:"profit_loss"`
	Parameters  ReportParameters `json:"parameters"`
}

// BuildReport assembles a report over records.
func BuildReport(records []domain.TradeRecord, params ReportParameters, now time.Time) Report {
	results := make([]Entry, 0, len(records))
	for _, rec := range records {
		results = append(results, ToEntry(rec))
	}
	return Report{
		GeneratedAt: now.UTC(),
		Results:     results,
		ProfitLoss:  RealizedPnL(records),
		Parameters:  params,
	}
}

// WriteReport encodes r as indented JSON.
func WriteReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("journal: write report: %w", err)
	}
	return nil
}
