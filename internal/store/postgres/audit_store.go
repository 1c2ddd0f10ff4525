package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

var _ domain.AuditStore = (*AuditStore)(nil)

// AuditStore keeps engine failures in audit_log, with details as JSONB.
type AuditStore struct {
	pool *pgxpool.Pool
}

func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	raw, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: audit %s: encode detail: %w", event, err)
	}
	if _, err := s.pool.Exec(ctx, `INSERT INTO audit_log (event, detail) VALUES ($1, $2)`, event, raw); err != nil {
		return fmt.Errorf("postgres: audit %s: %w", event, err)
	}
	return nil
}

type auditRow struct {
	ID        int64     `db:"id"`
	Event     string    `db:"event"`
	Detail    []byte    `db:"detail"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *AuditStore) List(ctx context.Context, event string, opts domain.ListOpts) ([]domain.AuditEvent, error) {
	base := `SELECT id, event, detail, created_at FROM audit_log WHERE TRUE`
	var args []any
	if event != "" {
		base += ` AND event = $1`
		args = append(args, event)
	}
	query, args := listQuery(base, "created_at", "DESC", opts, args)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowToStructByName[auditRow])
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit: %w", err)
	}

	out := make([]domain.AuditEvent, 0, len(found))
	for _, r := range found {
		ev := domain.AuditEvent{ID: r.ID, Event: r.Event, At: r.CreatedAt}
		if len(r.Detail) > 0 {
			if err := json.Unmarshal(r.Detail, &ev.Detail); err != nil {
				return nil, fmt.Errorf("postgres: audit %d: decode detail: %w", r.ID, err)
			}
		}
		out = append(out, ev)
	}
	return out, nil
}
