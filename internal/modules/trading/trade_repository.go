// Package trading owns the append-only trade ledger: every executed leg is
// recorded as an immutable trade row, and queries serve the metrics engine
// and the replay path. There is deliberately no update or delete API.
package trading

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/papertrader/internal/domain"
)

// tradesColumns is the list of columns for the trades table.
// Used to avoid SELECT * which can break when schema changes.
// Column order must match scanTrade() and scanTradeFromRows().
const tradesColumns = `id, symbol, side, quantity, price, timestamp, fees, status,
	portfolio_value_before, portfolio_value_after, pnl, strategy_used, confidence_score`

// TradeRepository handles trade database operations
type TradeRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(ledgerDB *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "trade").Logger(),
	}
}

// InsertTx appends a trade inside the caller's transaction. The position book
// commits each trade together with its position change, so inserts are
// transaction-scoped. Duplicate IDs are skipped silently; a trade is recorded
// exactly once.
func (r *TradeRepository) InsertTx(tx *sql.Tx, trade *domain.Trade) error {
	if trade.ID == "" {
		return fmt.Errorf("failed to insert trade: id is required")
	}

	exists, err := r.existsTx(tx, trade.ID)
	if err != nil {
		return fmt.Errorf("failed to check for existing trade: %w", err)
	}
	if exists {
		r.log.Debug().
			Str("trade_id", trade.ID).
			Msg("Trade already exists, skipping duplicate")
		return nil
	}

	query := `
		INSERT INTO trades
		(id, symbol, side, quantity, price, timestamp, fees, status,
		 portfolio_value_before, portfolio_value_after, pnl, strategy_used, confidence_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		trade.ID,
		strings.ToUpper(strings.TrimSpace(trade.Symbol)),
		string(trade.Side),
		trade.Quantity.String(),
		trade.Price.String(),
		trade.Timestamp.Unix(),
		trade.Fees.String(),
		string(trade.Status),
		trade.PortfolioValueBefore.String(),
		trade.PortfolioValueAfter.String(),
		trade.PnL.String(),
		nullString(trade.StrategyUsed),
		trade.ConfidenceScore,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}

	return nil
}

// existsTx checks for a trade id within the transaction
func (r *TradeRepository) existsTx(tx *sql.Tx, id string) (bool, error) {
	var count int
	err := tx.QueryRow(`SELECT COUNT(*) FROM trades WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetHistory returns the most recent trades, newest first
func (r *TradeRepository) GetHistory(limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT " + tradesColumns + " FROM trades ORDER BY timestamp DESC, id DESC LIMIT ?"

	rows, err := r.ledgerDB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade history: %w", err)
	}
	defer rows.Close()

	return r.collectTrades(rows)
}

// GetAllInRange returns trades within [from, to], oldest first
func (r *TradeRepository) GetAllInRange(from, to time.Time) ([]domain.Trade, error) {
	query := "SELECT " + tradesColumns + ` FROM trades
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, id ASC`

	rows, err := r.ledgerDB.Query(query, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query trades in range: %w", err)
	}
	defer rows.Close()

	return r.collectTrades(rows)
}

// GetAllAfter returns trades recorded strictly after the given time, oldest
// first. The replay path uses this to roll the ledger forward from the last
// snapshot.
func (r *TradeRepository) GetAllAfter(after time.Time) ([]domain.Trade, error) {
	query := "SELECT " + tradesColumns + ` FROM trades
		WHERE timestamp > ?
		ORDER BY timestamp ASC, id ASC`

	rows, err := r.ledgerDB.Query(query, after.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query trades after timestamp: %w", err)
	}
	defer rows.Close()

	return r.collectTrades(rows)
}

// GetBySymbol returns all trades for one symbol, oldest first
func (r *TradeRepository) GetBySymbol(symbol string) ([]domain.Trade, error) {
	query := "SELECT " + tradesColumns + ` FROM trades
		WHERE symbol = ?
		ORDER BY timestamp ASC, id ASC`

	rows, err := r.ledgerDB.Query(query, strings.ToUpper(strings.TrimSpace(symbol)))
	if err != nil {
		return nil, fmt.Errorf("failed to query trades by symbol: %w", err)
	}
	defer rows.Close()

	return r.collectTrades(rows)
}

// GetClosedTrades returns every closing leg (full and partial), oldest first.
// Win rate and profit factor are computed over these.
func (r *TradeRepository) GetClosedTrades() ([]domain.Trade, error) {
	query := "SELECT " + tradesColumns + ` FROM trades
		WHERE status IN (?, ?)
		ORDER BY timestamp ASC, id ASC`

	rows, err := r.ledgerDB.Query(query,
		string(domain.TradeStatusClosed), string(domain.TradeStatusPartialClose))
	if err != nil {
		return nil, fmt.Errorf("failed to query closed trades: %w", err)
	}
	defer rows.Close()

	return r.collectTrades(rows)
}

// RealizedPnLSince sums the realized P&L of closing legs at or after the
// given time. The daily loss limit check runs on this.
func (r *TradeRepository) RealizedPnLSince(since time.Time) (decimal.Decimal, error) {
	query := `SELECT pnl FROM trades WHERE timestamp >= ? AND status IN (?, ?)`

	rows, err := r.ledgerDB.Query(query, since.Unix(),
		string(domain.TradeStatusClosed), string(domain.TradeStatusPartialClose))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query realized pnl: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var pnlStr string
		if err := rows.Scan(&pnlStr); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan pnl: %w", err)
		}
		pnl, err := decimal.NewFromString(pnlStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid pnl %q: %w", pnlStr, err)
		}
		total = total.Add(pnl)
	}

	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating pnl rows: %w", err)
	}

	return total, nil
}

// Count returns the total number of recorded trades
func (r *TradeRepository) Count() (int, error) {
	var count int
	err := r.ledgerDB.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return count, nil
}

// collectTrades drains a result set into a slice
func (r *TradeRepository) collectTrades(rows *sql.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		trade, err := r.scanTradeFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

// scanTradeFromRows scans a row from a multi-row result set
func (r *TradeRepository) scanTradeFromRows(rows *sql.Rows) (domain.Trade, error) {
	var trade domain.Trade
	var side, status string
	var quantity, price, fees, valueBefore, valueAfter, pnl string
	var strategyUsed sql.NullString
	var timestampUnix int64

	err := rows.Scan(
		&trade.ID,
		&trade.Symbol,
		&side,
		&quantity,
		&price,
		&timestampUnix,
		&fees,
		&status,
		&valueBefore,
		&valueAfter,
		&pnl,
		&strategyUsed,
		&trade.ConfidenceScore,
	)
	if err != nil {
		return trade, err
	}

	trade.Side = domain.OrderSide(side)
	trade.Status = domain.TradeStatus(status)
	trade.Timestamp = time.Unix(timestampUnix, 0).UTC()
	if strategyUsed.Valid {
		trade.StrategyUsed = strategyUsed.String
	}

	if trade.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return trade, fmt.Errorf("invalid quantity %q: %w", quantity, err)
	}
	if trade.Price, err = decimal.NewFromString(price); err != nil {
		return trade, fmt.Errorf("invalid price %q: %w", price, err)
	}
	if trade.Fees, err = decimal.NewFromString(fees); err != nil {
		return trade, fmt.Errorf("invalid fees %q: %w", fees, err)
	}
	if trade.PortfolioValueBefore, err = decimal.NewFromString(valueBefore); err != nil {
		return trade, fmt.Errorf("invalid portfolio_value_before %q: %w", valueBefore, err)
	}
	if trade.PortfolioValueAfter, err = decimal.NewFromString(valueAfter); err != nil {
		return trade, fmt.Errorf("invalid portfolio_value_after %q: %w", valueAfter, err)
	}
	if trade.PnL, err = decimal.NewFromString(pnl); err != nil {
		return trade, fmt.Errorf("invalid pnl %q: %w", pnl, err)
	}

	return trade, nil
}

// Helper functions for nullable types

func nullString(val string) sql.NullString {
	if val == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: val, Valid: true}
}
