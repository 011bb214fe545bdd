package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/modules/metrics"
)

type stubLedger struct {
	closed []domain.Trade
}

func (s *stubLedger) ClosedTrades() ([]domain.Trade, error) {
	return s.closed, nil
}

type stubSnapshots struct {
	history []domain.PortfolioSnapshot
}

func (s *stubSnapshots) Recent(limit int) ([]domain.PortfolioSnapshot, error) {
	return s.history, nil
}

type stubBook struct {
	snap    domain.PortfolioSnapshot
	initial decimal.Decimal
}

func (s *stubBook) CurrentSnapshot() (domain.PortfolioSnapshot, error) {
	return s.snap, nil
}

func (s *stubBook) InitialCapital() decimal.Decimal {
	return s.initial
}

func closingTrade(pnl string) domain.Trade {
	return domain.Trade{
		Timestamp: time.Now().UTC(),
		Symbol:    "BTC",
		Side:      domain.OrderSideSell,
		Status:    domain.TradeStatusClosed,
		PnL:       decimal.RequireFromString(pnl),
	}
}

func newTestHandler(closed []domain.Trade) *Handler {
	book := &stubBook{
		snap: domain.PortfolioSnapshot{
			TotalValue:     decimal.RequireFromString("1.05"),
			AvailableCash:  decimal.RequireFromString("0.50"),
			InvestedAmount: decimal.RequireFromString("0.55"),
			NumberOfTrades: len(closed) * 2,
			WinRate:        0.5,
			PositionsCount: 2,
		},
		initial: decimal.RequireFromString("1.00"),
	}
	engine := metrics.NewEngine(&stubLedger{closed: closed}, &stubSnapshots{}, book, 1000, 5, zerolog.Nop())
	return NewHandler(engine, zerolog.Nop())
}

func TestHandleGetMetrics(t *testing.T) {
	handler := newTestHandler([]domain.Trade{
		closingTrade("0.10"),
		closingTrade("-0.04"),
	})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.HandleGetMetrics(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Contains(t, response, "metadata")

	data := response["data"].(map[string]interface{})
	assert.Equal(t, "1.05", data["total_value"])
	assert.Equal(t, "0.05", data["total_pnl"])
	assert.Equal(t, "5", data["total_pnl_percentage"])
	assert.Equal(t, "0.1", data["best_trade"])
	assert.Equal(t, "-0.04", data["worst_trade"])
	assert.Equal(t, float64(2), data["closed_trades"])
	assert.Equal(t, float64(4), data["number_of_trades"])
	assert.InDelta(t, 2.5, data["profit_factor"].(float64), 1e-9)
	assert.InDelta(t, 0.4, data["diversification_score"].(float64), 1e-9)
}

func TestHandleGetMetrics_InfiniteProfitFactor(t *testing.T) {
	handler := newTestHandler([]domain.Trade{closingTrade("0.10")})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.HandleGetMetrics(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	// All wins and no losses must still produce valid JSON.
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "inf", data["profit_factor"])
}

func TestRegisterRoutes(t *testing.T) {
	handler := newTestHandler(nil)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
