package portfolio

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/papertrader/internal/database"
	"github.com/aristath/papertrader/internal/domain"
)

func newTestPositionRepo(t *testing.T) (*PositionRepository, *database.DB) {
	t.Helper()

	db := newTestDB(t)
	return NewPositionRepository(db.Conn(), zerolog.Nop()), db
}

func upsertPosition(t *testing.T, db *database.DB, repo *PositionRepository, pos *domain.Position) {
	t.Helper()

	require.NoError(t, database.WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		return repo.UpsertTx(tx, pos)
	}))
}

func samplePosition(symbol string) *domain.Position {
	pos := &domain.Position{
		Symbol:     symbol,
		Side:       domain.SideLong,
		Quantity:   d("2.5"),
		EntryPrice: d("10.00"),
		EntryTime:  time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
		StopLoss:   d("9.785"),
		TakeProfit: d("10.7"),
		FeesPaid:   d("0.025"),
	}
	pos.UpdateCurrentPrice(d("10.00"))
	return pos
}

func TestPositionRepository_UpsertAndGet(t *testing.T) {
	repo, db := newTestPositionRepo(t)

	upsertPosition(t, db, repo, samplePosition("BTC"))
	upsertPosition(t, db, repo, samplePosition("ETH"))

	active, err := repo.GetAllActive()
	require.NoError(t, err)
	assert.Len(t, active, 2)

	got, err := repo.GetBySymbol("BTC")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "BTC", got.Symbol)
	assert.Equal(t, domain.SideLong, got.Side)
	assert.True(t, got.Quantity.Equal(d("2.5")))
	assert.True(t, got.EntryPrice.Equal(d("10.00")))
	assert.True(t, got.StopLoss.Equal(d("9.785")))
	assert.True(t, got.TakeProfit.Equal(d("10.7")))
	assert.True(t, got.FeesPaid.Equal(d("0.025")))
	assert.Equal(t, time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC), got.EntryTime)

	count, err := repo.GetActiveCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPositionRepository_GetBySymbolMissing(t *testing.T) {
	repo, _ := newTestPositionRepo(t)

	got, err := repo.GetBySymbol("GHOST")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPositionRepository_UpsertReplacesRow(t *testing.T) {
	repo, db := newTestPositionRepo(t)

	upsertPosition(t, db, repo, samplePosition("BTC"))

	// A same-side extend rewrites the whole row under the symbol key.
	extended := samplePosition("BTC")
	extended.Quantity = d("3.4375")
	extended.EntryPrice = d("12.727272")
	upsertPosition(t, db, repo, extended)

	count, err := repo.GetActiveCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := repo.GetBySymbol("BTC")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Quantity.Equal(d("3.4375")))
	assert.True(t, got.EntryPrice.Equal(d("12.727272")))
}

func TestPositionRepository_SymbolNormalization(t *testing.T) {
	repo, db := newTestPositionRepo(t)

	pos := samplePosition(" btc ")
	upsertPosition(t, db, repo, pos)

	got, err := repo.GetBySymbol("btc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "BTC", got.Symbol)
}

func TestPositionRepository_UpdatePrice(t *testing.T) {
	repo, db := newTestPositionRepo(t)

	upsertPosition(t, db, repo, samplePosition("BTC"))

	require.NoError(t, database.WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		return repo.UpdatePriceTx(tx, "BTC", d("10.4"), d("0.975"))
	}))

	got, err := repo.GetBySymbol("BTC")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.CurrentPrice.Equal(d("10.4")))
	assert.True(t, got.UnrealizedPnL.Equal(d("0.975")))
	assert.True(t, got.EntryPrice.Equal(d("10.00")), "entry must not move on mark")
}

func TestPositionRepository_Deactivate(t *testing.T) {
	repo, db := newTestPositionRepo(t)

	upsertPosition(t, db, repo, samplePosition("BTC"))

	require.NoError(t, database.WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		return repo.DeactivateTx(tx, "BTC", d("10.7"), d("1.725"))
	}))

	got, err := repo.GetBySymbol("BTC")
	require.NoError(t, err)
	assert.Nil(t, got, "closed positions leave the active set")

	count, err := repo.GetActiveCount()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// The terminal row is still there for history.
	var realized string
	var isActive int
	err = db.QueryRow(
		`SELECT realized_pnl, is_active FROM positions WHERE symbol = ?`, "BTC",
	).Scan(&realized, &isActive)
	require.NoError(t, err)
	assert.Equal(t, "1.725", realized)
	assert.Equal(t, 0, isActive)
}

func TestPositionRepository_DeactivateMissing(t *testing.T) {
	repo, db := newTestPositionRepo(t)

	err := database.WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		return repo.DeactivateTx(tx, "GHOST", d("10"), d("0"))
	})
	assert.Error(t, err)
}

func TestPositionRepository_NullProtectiveLevels(t *testing.T) {
	repo, db := newTestPositionRepo(t)

	// Rows written before protective levels existed carry NULLs.
	_, err := db.Exec(`INSERT INTO positions
		(symbol, side, quantity, entry_price, current_price, entry_time,
		 stop_loss, take_profit, fees_paid, unrealized_pnl, realized_pnl, is_active)
		VALUES ('OLD', 'long', '1', '10', '10', ?, NULL, NULL, '0', '0', '0', 1)`,
		time.Now().Unix())
	require.NoError(t, err)

	got, err := repo.GetBySymbol("OLD")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.StopLoss.IsZero())
	assert.True(t, got.TakeProfit.IsZero())
}
