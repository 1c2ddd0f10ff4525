package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// StatusSource reports the engine summary.
type StatusSource interface {
	Status() domain.BotStatus
}

// StatusHandler serves the engine summary for dashboards.
type StatusHandler struct {
	engine    StatusSource
	startedAt time.Time
}

func NewStatusHandler(engine StatusSource, startedAt time.Time) *StatusHandler {
	return &StatusHandler{engine: engine, startedAt: startedAt}
}

type statusResponse struct {
	Mode             string          `json:"mode"`
	Simulation       bool            `json:"simulation"`
	UptimeSeconds    int64           `json:"uptime_seconds"`
	OpenPositions    int             `json:"open_positions"`
	AvailableCapital decimal.Decimal `json:"available_capital"`
}

// GetStatus returns mode, uptime, open position count and free capital.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	s := h.engine.Status()
	uptime := int64(time.Since(h.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Mode:             s.Mode,
		Simulation:       s.Simulation,
		UptimeSeconds:    uptime,
		OpenPositions:    s.OpenPositions,
		AvailableCapital: s.AvailableCapital,
	})
}
