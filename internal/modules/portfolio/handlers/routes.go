package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all position book routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/positions", func(r chi.Router) {
		r.Post("/open", h.HandleOpenPosition)   // Open or extend a position
		r.Post("/close", h.HandleClosePosition) // Close a position (fully or partially)
	})

	r.Route("/prices", func(r chi.Router) {
		r.Post("/", h.HandleUpdatePrices)     // Batch price update + protective sweep
		r.Get("/stream", h.HandlePriceStream) // WebSocket price feed
	})

	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleGetPortfolio)    // Positions + cash/value summary
		r.Get("/can-open", h.HandleCanOpen) // Pre-trade admission check
	})
}
