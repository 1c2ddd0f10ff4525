package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/engine"
)

// ParameterService reads and updates the engine's tunable parameters.
type ParameterService interface {
	Parameters() engine.Parameters
	UpdateParameters(fn func(engine.Parameters) engine.Parameters) (engine.Parameters, error)
}

type ParameterHandler struct {
	params ParameterService
	logger *slog.Logger
}

func NewParameterHandler(params ParameterService, logger *slog.Logger) *ParameterHandler {
	return &ParameterHandler{params: params, logger: logHandler(logger, "parameters")}
}

type setParametersRequest struct {
	BuyAmount      *decimal.Decimal `json:"buy_amount"`
	SellMultiplier *decimal.Decimal `json:"sell_multiplier"`
}

// GetParameters returns buy_amount and sell_multiplier.
// GET /api/parameters
func (h *ParameterHandler) GetParameters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.params.Parameters())
}

// SetParameters merges the request into the current parameters. An omitted
// field keeps its value, including when another update lands concurrently.
// PUT /api/parameters
func (h *ParameterHandler) SetParameters(w http.ResponseWriter, r *http.Request) {
	var req setParametersRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	next, err := h.params.UpdateParameters(func(p engine.Parameters) engine.Parameters {
		if req.BuyAmount != nil {
			p.BuyAmount = *req.BuyAmount
		}
		if req.SellMultiplier != nil {
			p.SellMultiplier = *req.SellMultiplier
		}
		return p
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "set parameters failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to set parameters")
		return
	}
	writeJSON(w, http.StatusOK, next)
}
