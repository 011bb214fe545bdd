// Package handlers provides HTTP handlers for risk metrics.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/papertrader/internal/modules/portfolio"
)

// Handler handles risk metrics HTTP requests
type Handler struct {
	book *portfolio.Book
	log  zerolog.Logger
}

// NewHandler creates a new risk metrics handler
func NewHandler(book *portfolio.Book, log zerolog.Logger) *Handler {
	return &Handler{
		book: book,
		log:  log.With().Str("handler", "risk").Logger(),
	}
}

// HandleGetRiskMetrics handles GET /api/risk
func (h *Handler) HandleGetRiskMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.book.RiskMetrics()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute risk metrics")
		h.writeError(w, http.StatusInternalServerError, "Failed to compute risk metrics")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": metrics,
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
