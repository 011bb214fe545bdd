package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/papertrader/internal/database"
	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/modules/portfolio"
	"github.com/aristath/papertrader/internal/modules/risk"
	"github.com/aristath/papertrader/internal/modules/snapshots"
	"github.com/aristath/papertrader/internal/modules/trading"
)

func newTestBook(t *testing.T) *portfolio.Book {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(zerolog.Nop()))

	log := zerolog.Nop()
	book := portfolio.NewBook(db.Conn(),
		portfolio.NewPositionRepository(db.Conn(), log),
		trading.NewLedger(trading.NewTradeRepository(db.Conn(), log), log),
		snapshots.NewSnapshotRepository(db.Conn(), log),
		risk.NewCalculator(risk.DefaultLimits()),
		portfolio.BookConfig{
			InitialCapital:   decimal.RequireFromString("100"),
			FeeRate:          decimal.Zero,
			MaxOpenPositions: 4,
		}, log)
	require.NoError(t, book.Restore())

	return book
}

func TestHandleGetRiskMetrics(t *testing.T) {
	book := newTestBook(t)
	handler := NewHandler(book, zerolog.Nop())

	result, err := book.Open(portfolio.OpenRequest{
		Symbol:     "BTC",
		Side:       domain.SideLong,
		EntryPrice: decimal.RequireFromString("10"),
		Confidence: 1,
	})
	require.NoError(t, err)
	require.True(t, result.Executed)

	req := httptest.NewRequest("GET", "/risk", nil)
	w := httptest.NewRecorder()
	handler.HandleGetRiskMetrics(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Contains(t, response, "data")
	require.Contains(t, response, "metadata")

	data := response["data"].(map[string]interface{})
	assert.Equal(t, "100", data["total_value"])
	assert.InDelta(t, 75.0, data["available_cash_ratio"].(float64), 1e-9)
	assert.InDelta(t, 25.0, data["max_position_risk"].(float64), 1e-9)
	assert.Equal(t, float64(1), data["positions_count"])
	assert.Equal(t, true, data["can_trade"])

	exposures := data["position_exposures"].(map[string]interface{})
	assert.InDelta(t, 25.0, exposures["BTC"].(float64), 1e-9)
}

func TestRegisterRoutes(t *testing.T) {
	handler := NewHandler(newTestBook(t), zerolog.Nop())

	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	req := httptest.NewRequest("GET", "/risk", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
