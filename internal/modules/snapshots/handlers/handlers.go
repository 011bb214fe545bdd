// Package handlers provides HTTP handlers for the snapshot history.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/modules/snapshots"
)

// Handler handles snapshot history HTTP requests
type Handler struct {
	service *snapshots.Service
	log     zerolog.Logger
}

// NewHandler creates a new snapshot handler
func NewHandler(service *snapshots.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleGetSnapshots handles GET /api/snapshots?from=&to=&limit=
// A from/to window returns the snapshots inside it; otherwise the newest
// snapshots up to limit, in chronological order.
func (h *Handler) HandleGetSnapshots(w http.ResponseWriter, r *http.Request) {
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

	var snaps []domain.PortfolioSnapshot
	var err error

	if fromStr != "" || toStr != "" {
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
		snaps, err = h.service.Range(from, to)
	} else {
		snaps, err = h.service.Recent(limit)
	}

	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query snapshots")
		h.writeError(w, http.StatusInternalServerError, "Failed to query snapshots")
		return
	}

	if snaps == nil {
		snaps = []domain.PortfolioSnapshot{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"snapshots": snaps,
			"count":     len(snaps),
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
