// Package handlers provides HTTP handlers for the trade ledger.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/modules/trading"
)

// Handler handles trade ledger HTTP requests
type Handler struct {
	ledger *trading.Ledger
	log    zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(ledger *trading.Ledger, log zerolog.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		log:    log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleGetTrades handles GET /api/ledger/trades?symbol=&from=&to=&limit=
// A symbol filter returns that symbol's full history; a from/to window returns
// trades inside it; otherwise the most recent trades up to limit.
func (h *Handler) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	var trades []domain.Trade
	var err error

	switch {
	case symbol != "":
		trades, err = h.ledger.BySymbol(symbol)

	case fromStr != "" || toStr != "":
		from := time.Unix(0, 0)
		to := time.Now().UTC()
		if fromStr != "" {
			if from, err = time.Parse(time.RFC3339, fromStr); err != nil {
				h.writeError(w, http.StatusBadRequest, "from must be an RFC3339 timestamp")
				return
			}
		}
		if toStr != "" {
			if to, err = time.Parse(time.RFC3339, toStr); err != nil {
				h.writeError(w, http.StatusBadRequest, "to must be an RFC3339 timestamp")
				return
			}
		}
		trades, err = h.ledger.AllInRange(from, to)

	default:
		trades, err = h.ledger.History(limit)
	}

	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query trades")
		h.writeError(w, http.StatusInternalServerError, "Failed to query trades")
		return
	}

	if trades == nil {
		trades = []domain.Trade{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"trades": trades,
			"count":  len(trades),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
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
