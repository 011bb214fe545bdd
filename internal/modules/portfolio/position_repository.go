package portfolio

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/papertrader/internal/domain"
)

// positionColumns is the canonical column order for position queries
const positionColumns = `symbol, side, quantity, entry_price, current_price,
	entry_time, stop_loss, take_profit, fees_paid, unrealized_pnl, realized_pnl`

// PositionRepository handles position database operations. Monetary columns
// are stored as TEXT so decimals round-trip without binary float drift.
type PositionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repo", "position").Logger(),
	}
}

// GetAllActive returns all open positions
func (r *PositionRepository) GetAllActive() ([]domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE is_active = 1`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		pos, err := r.scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, pos)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// GetBySymbol returns the open position for a symbol, or nil when none exists
func (r *PositionRepository) GetBySymbol(symbol string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE symbol = ? AND is_active = 1`

	rows, err := r.db.Query(query, normalizeSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to query position by symbol: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil // Position not found
	}

	pos, err := r.scanPosition(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan position: %w", err)
	}

	return &pos, nil
}

// GetActiveCount returns the number of open positions
func (r *PositionRepository) GetActiveCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM positions WHERE is_active = 1`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get position count: %w", err)
	}

	return count, nil
}

// UpsertTx inserts or replaces the open position row for a symbol inside the
// caller's transaction. The ledger commits a position change and its trade
// record atomically, so all mutating methods here are transaction-scoped.
func (r *PositionRepository) UpsertTx(tx *sql.Tx, pos *domain.Position) error {
	query := `
		INSERT OR REPLACE INTO positions
		(symbol, side, quantity, entry_price, current_price, entry_time,
		 stop_loss, take_profit, fees_paid, unrealized_pnl, realized_pnl, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	`

	_, err := tx.Exec(query,
		normalizeSymbol(pos.Symbol),
		string(pos.Side),
		pos.Quantity.String(),
		pos.EntryPrice.String(),
		pos.CurrentPrice.String(),
		pos.EntryTime.Unix(),
		pos.StopLoss.String(),
		pos.TakeProfit.String(),
		pos.FeesPaid.String(),
		pos.UnrealizedPnL.String(),
		pos.RealizedPnL.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}

	return nil
}

// UpdatePriceTx writes the mark-to-market price and derived unrealized P&L
func (r *PositionRepository) UpdatePriceTx(tx *sql.Tx, symbol string, price, unrealizedPnL decimal.Decimal) error {
	query := `UPDATE positions SET current_price = ?, unrealized_pnl = ? WHERE symbol = ? AND is_active = 1`

	_, err := tx.Exec(query, price.String(), unrealizedPnL.String(), normalizeSymbol(symbol))
	if err != nil {
		return fmt.Errorf("failed to update position price: %w", err)
	}

	return nil
}

// DeactivateTx closes out the position row: the open set no longer contains
// the symbol, but the terminal state stays queryable for history.
func (r *PositionRepository) DeactivateTx(tx *sql.Tx, symbol string, exitPrice, realizedPnL decimal.Decimal) error {
	query := `
		UPDATE positions SET
			is_active = 0,
			quantity = '0',
			current_price = ?,
			unrealized_pnl = '0',
			realized_pnl = ?
		WHERE symbol = ? AND is_active = 1
	`

	result, err := tx.Exec(query, exitPrice.String(), realizedPnL.String(), normalizeSymbol(symbol))
	if err != nil {
		return fmt.Errorf("failed to deactivate position: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("no active position found for %s", symbol)
	}

	return nil
}

// scanPosition scans a database row into a Position
func (r *PositionRepository) scanPosition(rows *sql.Rows) (domain.Position, error) {
	var pos domain.Position
	var side string
	var quantity, entryPrice, currentPrice string
	var stopLoss, takeProfit sql.NullString
	var feesPaid, unrealizedPnL, realizedPnL string
	var entryTimeUnix int64

	err := rows.Scan(
		&pos.Symbol,
		&side,
		&quantity,
		&entryPrice,
		&currentPrice,
		&entryTimeUnix,
		&stopLoss,
		&takeProfit,
		&feesPaid,
		&unrealizedPnL,
		&realizedPnL,
	)
	if err != nil {
		return pos, err
	}

	pos.Side = domain.Side(side)
	pos.EntryTime = time.Unix(entryTimeUnix, 0).UTC()

	if pos.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return pos, fmt.Errorf("invalid quantity %q: %w", quantity, err)
	}
	if pos.EntryPrice, err = decimal.NewFromString(entryPrice); err != nil {
		return pos, fmt.Errorf("invalid entry_price %q: %w", entryPrice, err)
	}
	if pos.CurrentPrice, err = decimal.NewFromString(currentPrice); err != nil {
		return pos, fmt.Errorf("invalid current_price %q: %w", currentPrice, err)
	}
	if pos.StopLoss, err = decimalFromNull(stopLoss); err != nil {
		return pos, fmt.Errorf("invalid stop_loss: %w", err)
	}
	if pos.TakeProfit, err = decimalFromNull(takeProfit); err != nil {
		return pos, fmt.Errorf("invalid take_profit: %w", err)
	}
	if pos.FeesPaid, err = decimal.NewFromString(feesPaid); err != nil {
		return pos, fmt.Errorf("invalid fees_paid %q: %w", feesPaid, err)
	}
	if pos.UnrealizedPnL, err = decimal.NewFromString(unrealizedPnL); err != nil {
		return pos, fmt.Errorf("invalid unrealized_pnl %q: %w", unrealizedPnL, err)
	}
	if pos.RealizedPnL, err = decimal.NewFromString(realizedPnL); err != nil {
		return pos, fmt.Errorf("invalid realized_pnl %q: %w", realizedPnL, err)
	}

	pos.Symbol = normalizeSymbol(pos.Symbol)

	return pos, nil
}

// Helper functions

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func decimalFromNull(val sql.NullString) (decimal.Decimal, error) {
	if !val.Valid || val.String == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(val.String)
}
