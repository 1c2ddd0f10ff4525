package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// PositionSource lists held positions.
type PositionSource interface {
	HeldPositions() []domain.Position
}

// QuoteSource supplies last observed prices for marking positions.
type QuoteSource interface {
	Latest(ctx context.Context, tokens ...string) (map[string]domain.Quote, error)
}

type PositionHandler struct {
	positions PositionSource
	quotes    QuoteSource
	logger    *slog.Logger
}

func NewPositionHandler(positions PositionSource) *PositionHandler {
	return &PositionHandler{positions: positions, logger: slog.Default()}
}

// WithQuotes marks each position to its last cached price.
func (h *PositionHandler) WithQuotes(q QuoteSource, logger *slog.Logger) *PositionHandler {
	h.quotes = q
	h.logger = logHandler(logger, "positions")
	return h
}

type positionView struct {
	Token            string           `json:"token"`
	EntryPrice       decimal.Decimal  `json:"entry_price"`
	Size             decimal.Decimal  `json:"size"`
	PeakPrice        decimal.Decimal  `json:"peak_price"`
	LastPrice        *decimal.Decimal `json:"last_price,omitempty"`
	Unrealized       *decimal.Decimal `json:"unrealized_pnl,omitempty"`
	CreatorAddresses []string         `json:"creator_addresses"`
	State            string           `json:"state"`
	Mode             string           `json:"mode"`
	OpenedAt         time.Time        `json:"opened_at"`
}

type listPositionsResponse struct {
	Positions []positionView `json:"positions"`
}

// ListPositions returns every open or closing position. With a quote source
// each one also carries last_price and unrealized_pnl.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	held := h.positions.HeldPositions()
	marks := h.marks(r.Context(), held)

	out := make([]positionView, 0, len(held))
	for _, p := range held {
		v := positionView{
			Token:            p.Token,
			EntryPrice:       p.EntryPrice,
			Size:             p.Size,
			PeakPrice:        p.PeakPrice,
			CreatorAddresses: p.CreatorAddresses,
			State:            string(p.State),
			Mode:             string(p.Mode),
			OpenedAt:         p.OpenedAt.UTC(),
		}
		if v.CreatorAddresses == nil {
			v.CreatorAddresses = []string{}
		}
		if q, ok := marks[p.Token]; ok && p.EntryPrice.IsPositive() {
			last := q.Price
			pnl := p.Size.Mul(last).Div(p.EntryPrice).Sub(p.Size)
			v.LastPrice, v.Unrealized = &last, &pnl
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: out})
}

// marks is best effort; a cache failure only drops the mark-to-market
// fields.
func (h *PositionHandler) marks(ctx context.Context, held []domain.Position) map[string]domain.Quote {
	if h.quotes == nil || len(held) == 0 {
		return nil
	}
	tokens := make([]string, len(held))
	for i, p := range held {
		tokens[i] = p.Token
	}
	quotes, err := h.quotes.Latest(ctx, tokens...)
	if err != nil {
		h.logger.WarnContext(ctx, "price lookup failed", slog.String("error", err.Error()))
		return nil
	}
	return quotes
}
