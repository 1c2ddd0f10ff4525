package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

var _ domain.TradeStore = (*TradeStore)(nil)

// TradeStore implements domain.TradeStore on the append-only trade_records
// table. Prices and sizes travel as numeric text so no precision is lost.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id::text, token, action, price::text, size::text, latency_ms,
	venue, tx_id, mode, dump_signal, exit_reason, executed_at`

// Append inserts one record. Re-appending the same ID is a no-op so an
// at-least-once caller cannot duplicate history.
func (s *TradeStore) Append(ctx context.Context, rec domain.TradeRecord) error {
	const query = `
		INSERT INTO trade_records (
			id, token, action, price, size, latency_ms,
			venue, tx_id, mode, dump_signal, exit_reason, executed_at
		) VALUES (
			$1, $2, $3, $4::numeric, $5::numeric, $6,
			$7, $8, $9, $10, $11, $12
		) ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Token, string(rec.Action), rec.Price.String(), rec.Size.String(),
		float64(rec.Latency)/float64(time.Millisecond),
		rec.Venue, rec.TxID, string(rec.Mode), rec.DumpSignal, rec.ExitReason, rec.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: append trade %s: %w", rec.ID, err)
	}
	return nil
}

// List returns records for mode, oldest first. An empty mode lists both.
func (s *TradeStore) List(ctx context.Context, mode domain.TradeMode, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	return s.list(ctx, mode, "ASC", opts)
}

// ListRecent is List with the newest records first.
func (s *TradeStore) ListRecent(ctx context.Context, mode domain.TradeMode, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	return s.list(ctx, mode, "DESC", opts)
}

func (s *TradeStore) list(ctx context.Context, mode domain.TradeMode, order string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	base := `SELECT ` + tradeSelectCols + ` FROM trade_records WHERE TRUE`
	var args []any
	if mode != "" {
		base += ` AND mode = $1`
		args = append(args, string(mode))
	}
	query, args := listQuery(base, "executed_at", order, opts, args)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	recs, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return recs, nil
}

// Load returns the full history in execution order, used to rebuild
// realized P&L after a restart.
func (s *TradeStore) Load(ctx context.Context) ([]domain.TradeRecord, error) {
	return s.List(ctx, "", domain.ListOpts{})
}

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var recs []domain.TradeRecord
	for rows.Next() {
		var (
			r                 domain.TradeRecord
			action, mode      string
			priceStr, sizeStr string
			latencyMS         float64
		)
		if err := rows.Scan(
			&r.ID, &r.Token, &action, &priceStr, &sizeStr, &latencyMS,
			&r.Venue, &r.TxID, &mode, &r.DumpSignal, &r.ExitReason, &r.Timestamp,
		); err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", priceStr, err)
		}
		size, err := decimal.NewFromString(sizeStr)
		if err != nil {
			return nil, fmt.Errorf("size %q: %w", sizeStr, err)
		}
		r.Action = domain.TradeAction(action)
		r.Mode = domain.TradeMode(mode)
		r.Price = price
		r.Size = size
		r.Latency = time.Duration(latencyMS * float64(time.Millisecond))
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
