// Package handlers provides HTTP handlers for the position book: opening and
// closing positions, price updates, and portfolio state queries.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/modules/portfolio"
	"github.com/aristath/papertrader/internal/modules/risk"
)

// Handler handles position book HTTP requests
type Handler struct {
	book *portfolio.Book
	log  zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(book *portfolio.Book, log zerolog.Logger) *Handler {
	return &Handler{
		book: book,
		log:  log.With().Str("handler", "portfolio").Logger(),
	}
}

// openPositionRequest is the body of POST /api/positions/open. Volatility is
// optional; when omitted it is estimated from recent_prices.
type openPositionRequest struct {
	Symbol       string          `json:"symbol"`
	Side         string          `json:"side"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	Confidence   float64         `json:"confidence"`
	Volatility   *float64        `json:"volatility,omitempty"`
	RecentPrices []float64       `json:"recent_prices,omitempty"`
	Strategy     string          `json:"strategy,omitempty"`
}

// HandleOpenPosition handles POST /api/positions/open
func (h *Handler) HandleOpenPosition(w http.ResponseWriter, r *http.Request) {
	var req openPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Symbol == "" {
		h.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if !req.EntryPrice.IsPositive() {
		h.writeError(w, http.StatusBadRequest, "entry_price must be positive")
		return
	}

	side := domain.SideLong
	if req.Side != "" {
		parsed, err := domain.SideFromString(req.Side)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		side = parsed
	}

	var volatility float64
	if req.Volatility != nil {
		volatility = *req.Volatility
	} else {
		volatility = risk.EstimateVolatility(req.RecentPrices)
		h.log.Debug().
			Str("symbol", req.Symbol).
			Float64("volatility", volatility).
			Int("samples", len(req.RecentPrices)).
			Msg("Estimated volatility from recent prices")
	}

	result, err := h.book.Open(portfolio.OpenRequest{
		Symbol:       req.Symbol,
		Side:         side,
		EntryPrice:   req.EntryPrice,
		Confidence:   req.Confidence,
		Volatility:   volatility,
		StrategyUsed: req.Strategy,
	})
	if err != nil {
		h.log.Error().Err(err).Str("symbol", req.Symbol).Msg("Failed to open position")
		h.writeError(w, http.StatusInternalServerError, "Failed to open position")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// closePositionRequest is the body of POST /api/positions/close. A missing or
// zero quantity closes the full position.
type closePositionRequest struct {
	Symbol    string          `json:"symbol"`
	ExitPrice decimal.Decimal `json:"exit_price"`
	Quantity  decimal.Decimal `json:"quantity,omitempty"`
}

// HandleClosePosition handles POST /api/positions/close
func (h *Handler) HandleClosePosition(w http.ResponseWriter, r *http.Request) {
	var req closePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Symbol == "" {
		h.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if !req.ExitPrice.IsPositive() {
		h.writeError(w, http.StatusBadRequest, "exit_price must be positive")
		return
	}
	if req.Quantity.IsNegative() {
		h.writeError(w, http.StatusBadRequest, "quantity must not be negative")
		return
	}

	result, err := h.book.Close(req.Symbol, req.ExitPrice, req.Quantity)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", req.Symbol).Msg("Failed to close position")
		h.writeError(w, http.StatusInternalServerError, "Failed to close position")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleUpdatePrices handles POST /api/prices. The body is a flat
// {symbol: price} map; the response reports re-marked positions and any
// protective closes the sweep fired.
func (h *Handler) HandleUpdatePrices(w http.ResponseWriter, r *http.Request) {
	var prices map[string]decimal.Decimal
	if err := json.NewDecoder(r.Body).Decode(&prices); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.book.MarkToMarket(prices)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to apply prices")
		h.writeError(w, http.StatusInternalServerError, "Failed to apply prices")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleGetPortfolio handles GET /api/portfolio
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	snap, err := h.book.CurrentSnapshot()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read portfolio state")
		h.writeError(w, http.StatusInternalServerError, "Failed to read portfolio state")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_value":     snap.TotalValue,
		"available_cash":  snap.AvailableCash,
		"invested_amount": snap.InvestedAmount,
		"unrealized_pnl":  snap.UnrealizedPnL,
		"realized_pnl":    snap.RealizedPnL,
		"daily_pnl":       snap.DailyPnL,
		"total_fees_paid": snap.TotalFeesPaid,
		"positions_count": snap.PositionsCount,
		"positions":       h.book.PositionSummary(),
	})
}

// HandleCanOpen handles GET /api/portfolio/can-open?notional=
func (h *Handler) HandleCanOpen(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("notional")
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "notional query parameter is required")
		return
	}

	notional, err := decimal.NewFromString(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "notional must be a number")
		return
	}

	ok, rejection := h.book.CanOpen(notional)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"can_open": ok,
		"reason":   rejection,
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
