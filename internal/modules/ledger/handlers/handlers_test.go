package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/papertrader/internal/database"
	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/modules/trading"
)

// newTestLedger seeds one closed trade per symbol, an hour apart starting at
// base.
func newTestLedger(t *testing.T, base time.Time, symbols ...string) *trading.Ledger {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(zerolog.Nop()))

	ledger := trading.NewLedger(trading.NewTradeRepository(db.Conn(), zerolog.Nop()), zerolog.Nop())

	for i, symbol := range symbols {
		trade := domain.Trade{
			Timestamp:            base.Add(time.Duration(i) * time.Hour),
			Symbol:               symbol,
			Side:                 domain.OrderSideSell,
			Status:               domain.TradeStatusClosed,
			StrategyUsed:         "momentum",
			Quantity:             decimal.RequireFromString("1.5"),
			Price:                decimal.RequireFromString("10.00"),
			Fees:                 decimal.RequireFromString("0.015"),
			PortfolioValueBefore: decimal.RequireFromString("100"),
			PortfolioValueAfter:  decimal.RequireFromString("100"),
			PnL:                  decimal.NewFromInt(int64(i)),
			ConfidenceScore:      0.8,
		}
		err := database.WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			return ledger.Append(tx, &trade)
		})
		require.NoError(t, err)
	}

	return ledger
}

func getTrades(t *testing.T, handler *Handler, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()
	handler.HandleGetTrades(w, req)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return w, response
}

func TestHandleGetTrades(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ledger := newTestLedger(t, base, "BTC", "ETH", "SOL")
	handler := NewHandler(ledger, zerolog.Nop())

	w, response := getTrades(t, handler, "/ledger/trades")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.Contains(t, response, "metadata")

	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["count"])

	trades := data["trades"].([]interface{})
	require.Len(t, trades, 3)
	first := trades[0].(map[string]interface{})
	assert.Equal(t, "SOL", first["symbol"], "newest trade first")
	assert.Equal(t, "sell", first["side"])
	assert.Equal(t, "closed", first["status"])
	assert.Equal(t, "1.5", first["quantity"])
}

func TestHandleGetTrades_Limit(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ledger := newTestLedger(t, base, "BTC", "ETH", "SOL")
	handler := NewHandler(ledger, zerolog.Nop())

	w, response := getTrades(t, handler, "/ledger/trades?limit=1")
	require.Equal(t, http.StatusOK, w.Code)

	data := response["data"].(map[string]interface{})
	trades := data["trades"].([]interface{})
	require.Len(t, trades, 1)
	assert.Equal(t, "SOL", trades[0].(map[string]interface{})["symbol"])
}

func TestHandleGetTrades_BySymbol(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ledger := newTestLedger(t, base, "BTC", "ETH", "BTC")
	handler := NewHandler(ledger, zerolog.Nop())

	w, response := getTrades(t, handler, "/ledger/trades?symbol=btc")
	require.Equal(t, http.StatusOK, w.Code)

	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["count"])
	for _, raw := range data["trades"].([]interface{}) {
		assert.Equal(t, "BTC", raw.(map[string]interface{})["symbol"])
	}
}

func TestHandleGetTrades_Window(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ledger := newTestLedger(t, base, "BTC", "ETH", "SOL")
	handler := NewHandler(ledger, zerolog.Nop())

	target := fmt.Sprintf("/ledger/trades?from=%s&to=%s",
		base.Format(time.RFC3339),
		base.Add(time.Hour).Format(time.RFC3339))

	w, response := getTrades(t, handler, target)
	require.Equal(t, http.StatusOK, w.Code)

	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["count"], "window bounds are inclusive")
}

func TestHandleGetTrades_OpenEndedWindow(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ledger := newTestLedger(t, base, "BTC", "ETH", "SOL")
	handler := NewHandler(ledger, zerolog.Nop())

	target := "/ledger/trades?from=" + base.Add(2*time.Hour).Format(time.RFC3339)
	w, response := getTrades(t, handler, target)
	require.Equal(t, http.StatusOK, w.Code)

	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["count"])
}

func TestHandleGetTrades_BadParams(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ledger := newTestLedger(t, base, "BTC")
	handler := NewHandler(ledger, zerolog.Nop())

	for name, target := range map[string]string{
		"zero limit":     "/ledger/trades?limit=0",
		"negative limit": "/ledger/trades?limit=-1",
		"word limit":     "/ledger/trades?limit=all",
		"bad from":       "/ledger/trades?from=June",
		"bad to":         "/ledger/trades?to=1717200000",
	} {
		t.Run(name, func(t *testing.T) {
			w, response := getTrades(t, handler, target)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, response, "error")
		})
	}
}

func TestHandleGetTrades_EmptyLedger(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ledger := newTestLedger(t, base)
	handler := NewHandler(ledger, zerolog.Nop())

	w, response := getTrades(t, handler, "/ledger/trades")
	require.Equal(t, http.StatusOK, w.Code)

	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["count"])
	assert.NotNil(t, data["trades"], "empty list, not null")
}

func TestRegisterRoutes(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ledger := newTestLedger(t, base, "BTC")
	handler := NewHandler(ledger, zerolog.Nop())

	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	req := httptest.NewRequest("GET", "/ledger/trades", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
