// Package handlers provides HTTP handlers for performance metrics.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/papertrader/internal/modules/metrics"
)

// Handler handles performance metrics HTTP requests
type Handler struct {
	engine *metrics.Engine
	log    zerolog.Logger
}

// NewHandler creates a new metrics handler
func NewHandler(engine *metrics.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		log:    log.With().Str("handler", "metrics").Logger(),
	}
}

// HandleGetMetrics handles GET /api/metrics
func (h *Handler) HandleGetMetrics(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.PortfolioMetrics()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute portfolio metrics")
		h.writeError(w, http.StatusInternalServerError, "Failed to compute portfolio metrics")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result,
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
