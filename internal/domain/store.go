package domain

import (
	"context"
	"time"
)

// ListOpts pages and time-bounds a history query. Zero values leave the
// corresponding constraint off.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time // inclusive
	Until  *time.Time // inclusive
}

// Contains reports whether t lies inside the Since/Until window.
func (o ListOpts) Contains(t time.Time) bool {
	if o.Since != nil && t.Before(*o.Since) {
		return false
	}
	if o.Until != nil && t.After(*o.Until) {
		return false
	}
	return true
}

// TradeStore is the durable, insert-only trade history.
type TradeStore interface {
	Append(ctx context.Context, rec TradeRecord) error
	List(ctx context.Context, mode TradeMode, opts ListOpts) ([]TradeRecord, error)
}

// AuditEvent is one recorded engine failure or refusal.
type AuditEvent struct {
	ID     int64          `json:"id"`
	Event  string         `json:"event"`
	Detail map[string]any `json:"detail,omitempty"`
	At     time.Time      `json:"at"`
}

// AuditStore keeps the engine's failure log. List returns newest first; an
// empty event matches every event.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, event string, opts ListOpts) ([]AuditEvent, error)
}
