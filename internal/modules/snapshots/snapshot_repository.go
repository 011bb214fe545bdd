// Package snapshots persists point-in-time portfolio aggregates. The series
// feeds drawdown and Sharpe computation and anchors replay on restart.
package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/papertrader/internal/domain"
)

// snapshotColumns is the canonical column order for snapshot queries
const snapshotColumns = `id, timestamp, total_value, available_cash, invested_amount,
	unrealized_pnl, realized_pnl, daily_pnl, total_fees_paid, number_of_trades,
	win_rate, positions_count`

// SnapshotRepository handles snapshot database operations
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "snapshot").Logger(),
	}
}

// InsertTx appends a snapshot inside the caller's transaction
func (r *SnapshotRepository) InsertTx(tx *sql.Tx, snap *domain.PortfolioSnapshot) error {
	_, err := tx.Exec(insertQuery, insertArgs(snap)...)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// Insert appends a snapshot outside any transaction (scheduler path)
func (r *SnapshotRepository) Insert(snap *domain.PortfolioSnapshot) error {
	_, err := r.db.Exec(insertQuery, insertArgs(snap)...)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

const insertQuery = `
	INSERT INTO snapshots
	(timestamp, total_value, available_cash, invested_amount, unrealized_pnl,
	 realized_pnl, daily_pnl, total_fees_paid, number_of_trades, win_rate, positions_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func insertArgs(snap *domain.PortfolioSnapshot) []interface{} {
	return []interface{}{
		snap.Timestamp.Unix(),
		snap.TotalValue.String(),
		snap.AvailableCash.String(),
		snap.InvestedAmount.String(),
		snap.UnrealizedPnL.String(),
		snap.RealizedPnL.String(),
		snap.DailyPnL.String(),
		snap.TotalFeesPaid.String(),
		snap.NumberOfTrades,
		snap.WinRate,
		snap.PositionsCount,
	}
}

// Latest returns the most recent snapshot, or nil when none exists
func (r *SnapshotRepository) Latest() (*domain.PortfolioSnapshot, error) {
	query := "SELECT " + snapshotColumns + " FROM snapshots ORDER BY timestamp DESC, id DESC LIMIT 1"

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil // No snapshots yet
	}

	snap, err := r.scanSnapshot(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	return &snap, nil
}

// GetRecent returns the newest N snapshots in chronological order, which is
// what the return-series math in the metrics engine expects.
func (r *SnapshotRepository) GetRecent(limit int) ([]domain.PortfolioSnapshot, error) {
	if limit <= 0 {
		limit = 1000
	}

	query := `SELECT ` + snapshotColumns + ` FROM (
		SELECT ` + snapshotColumns + ` FROM snapshots ORDER BY timestamp DESC, id DESC LIMIT ?
	) ORDER BY timestamp ASC, id ASC`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent snapshots: %w", err)
	}
	defer rows.Close()

	return r.collectSnapshots(rows)
}

// GetAllInRange returns snapshots within [from, to], oldest first
func (r *SnapshotRepository) GetAllInRange(from, to time.Time) ([]domain.PortfolioSnapshot, error) {
	query := "SELECT " + snapshotColumns + ` FROM snapshots
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, id ASC`

	rows, err := r.db.Query(query, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots in range: %w", err)
	}
	defer rows.Close()

	return r.collectSnapshots(rows)
}

// Count returns the number of stored snapshots
func (r *SnapshotRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

// Prune deletes everything but the newest keep snapshots and returns the
// number of rows removed. This is the only deletion in the system; it never
// touches positions or trades.
func (r *SnapshotRepository) Prune(keep int) (int64, error) {
	if keep < 1 {
		return 0, fmt.Errorf("retention must keep at least one snapshot, got %d", keep)
	}

	query := `DELETE FROM snapshots WHERE id NOT IN (
		SELECT id FROM snapshots ORDER BY timestamp DESC, id DESC LIMIT ?
	)`

	result, err := r.db.Exec(query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}

	removed, _ := result.RowsAffected()
	if removed > 0 {
		r.log.Debug().Int64("removed", removed).Int("keep", keep).Msg("Snapshots pruned")
	}

	return removed, nil
}

// collectSnapshots drains a result set into a slice
func (r *SnapshotRepository) collectSnapshots(rows *sql.Rows) ([]domain.PortfolioSnapshot, error) {
	var snaps []domain.PortfolioSnapshot
	for rows.Next() {
		snap, err := r.scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snaps, nil
}

// scanSnapshot scans a database row into a PortfolioSnapshot
func (r *SnapshotRepository) scanSnapshot(rows *sql.Rows) (domain.PortfolioSnapshot, error) {
	var snap domain.PortfolioSnapshot
	var timestampUnix int64
	var totalValue, availableCash, investedAmount string
	var unrealizedPnL, realizedPnL, dailyPnL, totalFees string

	err := rows.Scan(
		&snap.ID,
		&timestampUnix,
		&totalValue,
		&availableCash,
		&investedAmount,
		&unrealizedPnL,
		&realizedPnL,
		&dailyPnL,
		&totalFees,
		&snap.NumberOfTrades,
		&snap.WinRate,
		&snap.PositionsCount,
	)
	if err != nil {
		return snap, err
	}

	snap.Timestamp = time.Unix(timestampUnix, 0).UTC()

	if snap.TotalValue, err = decimal.NewFromString(totalValue); err != nil {
		return snap, fmt.Errorf("invalid total_value %q: %w", totalValue, err)
	}
	if snap.AvailableCash, err = decimal.NewFromString(availableCash); err != nil {
		return snap, fmt.Errorf("invalid available_cash %q: %w", availableCash, err)
	}
	if snap.InvestedAmount, err = decimal.NewFromString(investedAmount); err != nil {
		return snap, fmt.Errorf("invalid invested_amount %q: %w", investedAmount, err)
	}
	if snap.UnrealizedPnL, err = decimal.NewFromString(unrealizedPnL); err != nil {
		return snap, fmt.Errorf("invalid unrealized_pnl %q: %w", unrealizedPnL, err)
	}
	if snap.RealizedPnL, err = decimal.NewFromString(realizedPnL); err != nil {
		return snap, fmt.Errorf("invalid realized_pnl %q: %w", realizedPnL, err)
	}
	if snap.DailyPnL, err = decimal.NewFromString(dailyPnL); err != nil {
		return snap, fmt.Errorf("invalid daily_pnl %q: %w", dailyPnL, err)
	}
	if snap.TotalFeesPaid, err = decimal.NewFromString(totalFees); err != nil {
		return snap, fmt.Errorf("invalid total_fees_paid %q: %w", totalFees, err)
	}

	return snap, nil
}
