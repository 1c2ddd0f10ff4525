package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// CapitalService is the operator's view of the capital ledger.
type CapitalService interface {
	SetCapital(amount decimal.Decimal) error
	AvailableCapital() decimal.Decimal
	TotalCapital() decimal.Decimal
}

type CapitalHandler struct {
	capital CapitalService
	logger  *slog.Logger
}

func NewCapitalHandler(capital CapitalService, logger *slog.Logger) *CapitalHandler {
	return &CapitalHandler{capital: capital, logger: logHandler(logger, "capital")}
}

type capitalResponse struct {
	Available decimal.Decimal `json:"available"`
	Total     decimal.Decimal `json:"total"`
}

type setCapitalRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

// GetCapital returns available and total capital.
// GET /api/capital
func (h *CapitalHandler) GetCapital(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, capitalResponse{
		Available: h.capital.AvailableCapital(),
		Total:     h.capital.TotalCapital(),
	})
}

// SetCapital resets the capital pool.
// PUT /api/capital {"amount": "0.05"}
func (h *CapitalHandler) SetCapital(w http.ResponseWriter, r *http.Request) {
	var req setCapitalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Amount == nil {
		writeError(w, http.StatusBadRequest, "amount is required")
		return
	}
	if err := h.capital.SetCapital(*req.Amount); err != nil {
		if errors.Is(err, domain.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "set capital failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to set capital")
		return
	}
	h.logger.InfoContext(r.Context(), "capital set by operator", slog.String("amount", req.Amount.String()))
	h.GetCapital(w, r)
}
