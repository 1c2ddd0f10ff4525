package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/journal"
)

// TradeHistory is the in-memory view of recent trades.
type TradeHistory interface {
	Recent(limit int) []domain.TradeRecord
	PnL() journal.PnL
}

// TradeArchive lists persisted trades newest first.
type TradeArchive interface {
	ListRecent(ctx context.Context, mode domain.TradeMode, opts domain.ListOpts) ([]domain.TradeRecord, error)
}

// TradeHandler serves trade history and realized P&L. With an archive, a
// mode-filtered query reads from it instead of memory.
type TradeHandler struct {
	history TradeHistory
	store   TradeArchive
	logger  *slog.Logger
}

// NewTradeHandler creates a TradeHandler. store may be nil.
func NewTradeHandler(history TradeHistory, store TradeArchive, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{history: history, store: store, logger: logHandler(logger, "trades")}
}

type listTradesResponse struct {
	Trades []journal.Entry `json:"trades"`
}

type pnlResponse struct {
	journal.PnL
	Total string `json:"total"`
}

// ListTrades returns the most recent trades, newest first.
// GET /api/trades?limit=50&mode=simulation&since=2026-01-02T15:04:05Z
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode := domain.TradeMode(r.URL.Query().Get("mode"))
	switch mode {
	case "", domain.TradeModeSimulation, domain.TradeModeReal:
	default:
		writeError(w, http.StatusBadRequest, "mode must be simulation or real")
		return
	}

	var recs []domain.TradeRecord
	if mode != "" && h.store != nil {
		recs, err = h.store.ListRecent(r.Context(), mode, opts)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "list trades failed",
				slog.String("mode", string(mode)),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to list trades")
			return
		}
	} else {
		all := h.history.Recent(0)
		for i := len(all) - 1; i >= 0; i-- {
			if (mode != "" && all[i].Mode != mode) || !opts.Contains(all[i].Timestamp) {
				continue
			}
			recs = append(recs, all[i])
		}
		recs = page(recs, opts)
	}

	out := make([]journal.Entry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, journal.ToEntry(rec))
	}
	writeJSON(w, http.StatusOK, listTradesResponse{Trades: out})
}

// GetPnL returns realized P&L per mode.
// GET /api/pnl
func (h *TradeHandler) GetPnL(w http.ResponseWriter, r *http.Request) {
	p := h.history.PnL()
	writeJSON(w, http.StatusOK, pnlResponse{PnL: p, Total: p.Total().String()})
}

func page(recs []domain.TradeRecord, opts domain.ListOpts) []domain.TradeRecord {
	if opts.Offset >= len(recs) {
		return nil
	}
	recs = recs[opts.Offset:]
	if opts.Limit > 0 && len(recs) > opts.Limit {
		recs = recs[:opts.Limit]
	}
	return recs
}
