package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// AuditLog lists recorded engine failures, newest first.
type AuditLog interface {
	List(ctx context.Context, event string, opts domain.ListOpts) ([]domain.AuditEvent, error)
}

type AuditHandler struct {
	log    AuditLog
	logger *slog.Logger
}

func NewAuditHandler(log AuditLog, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{log: log, logger: logHandler(logger, "audit")}
}

// ListAudit returns failed buys, failed sells and refusals.
// GET /api/audit?event=buy_failed&limit=50&since=2026-01-02T15:04:05Z
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := h.log.List(r.Context(), r.URL.Query().Get("event"), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list audit failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list audit events")
		return
	}
	if events == nil {
		events = []domain.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
