package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"nhooyr.io/websocket"
)

const writeWait = 10 * time.Second

// HandlePriceStream handles GET /api/prices/stream. Each text frame carries
// the same {symbol: price} map as POST /api/prices; the sweep result for
// every frame is written back on the same connection.
func (h *Handler) HandlePriceStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin enforcement happens in the CORS middleware.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	ctx := r.Context()
	h.log.Info().Str("remote", r.RemoteAddr).Msg("Price stream connected")

	for {
		msgType, message, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				h.log.Info().Int("status", int(closeStatus)).Msg("Price stream closed")
			} else if ctx.Err() != nil {
				h.log.Debug().Msg("Price stream cancelled by context")
			} else {
				h.log.Warn().Err(err).Msg("Price stream read error")
			}
			return
		}

		if msgType != websocket.MessageText {
			h.log.Debug().Int("type", int(msgType)).Msg("Ignoring non-text message")
			continue
		}

		var prices map[string]decimal.Decimal
		if err := json.Unmarshal(message, &prices); err != nil {
			h.log.Warn().Err(err).Msg("Ignoring malformed price frame")
			continue
		}

		result, err := h.book.MarkToMarket(prices)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to apply streamed prices")
			continue
		}

		payload, err := json.Marshal(result)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to encode sweep result")
			continue
		}

		writeCtx, cancel := context.WithTimeout(ctx, writeWait)
		err = conn.Write(writeCtx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			h.log.Warn().Err(err).Msg("Price stream write failed")
			return
		}
	}
}
