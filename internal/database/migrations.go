package database

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Migration is one ordered schema change. Migrations run exactly once, in
// version order, and are recorded in schema_migrations.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered schema history of the ledger database. Never
// reorder or edit an applied entry; append a new version instead.
var migrations = []Migration{
	{
		Version:     1,
		Description: "positions table",
		SQL: `CREATE TABLE IF NOT EXISTS positions (
			symbol TEXT PRIMARY KEY,
			side TEXT NOT NULL,
			quantity TEXT NOT NULL,
			entry_price TEXT NOT NULL,
			current_price TEXT NOT NULL,
			entry_time INTEGER NOT NULL,
			stop_loss TEXT,
			take_profit TEXT,
			fees_paid TEXT NOT NULL DEFAULT '0',
			unrealized_pnl TEXT NOT NULL DEFAULT '0',
			realized_pnl TEXT NOT NULL DEFAULT '0',
			is_active INTEGER NOT NULL DEFAULT 1
		)`,
	},
	{
		Version:     2,
		Description: "trades table",
		SQL: `CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity TEXT NOT NULL,
			price TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			fees TEXT NOT NULL DEFAULT '0',
			status TEXT NOT NULL,
			portfolio_value_before TEXT NOT NULL DEFAULT '0',
			portfolio_value_after TEXT NOT NULL DEFAULT '0',
			pnl TEXT NOT NULL DEFAULT '0',
			strategy_used TEXT,
			confidence_score REAL NOT NULL DEFAULT 0
		)`,
	},
	{
		Version:     3,
		Description: "trade lookup indexes",
		SQL: `CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades(timestamp);
		CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol, timestamp)`,
	},
	{
		Version:     4,
		Description: "snapshots table",
		SQL: `CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			total_value TEXT NOT NULL,
			available_cash TEXT NOT NULL,
			invested_amount TEXT NOT NULL,
			unrealized_pnl TEXT NOT NULL DEFAULT '0',
			realized_pnl TEXT NOT NULL DEFAULT '0',
			daily_pnl TEXT NOT NULL DEFAULT '0',
			total_fees_paid TEXT NOT NULL DEFAULT '0',
			number_of_trades INTEGER NOT NULL DEFAULT 0,
			win_rate REAL NOT NULL DEFAULT 0,
			positions_count INTEGER NOT NULL DEFAULT 0
		)`,
	},
	{
		Version:     5,
		Description: "snapshot timestamp index",
		SQL:         `CREATE INDEX IF NOT EXISTS idx_snapshots_timestamp ON snapshots(timestamp)`,
	},
}

// Migrate applies every pending migration in version order. Each migration
// runs in its own transaction together with its schema_migrations record, so
// a failure leaves the database at the last fully applied version.
func (db *DB) Migrate(log zerolog.Logger) error {
	if _, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	current, err := db.schemaVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		err := WithTransaction(db.conn, func(tx *sql.Tx) error {
			if _, err := tx.Exec(m.SQL); err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
			}
			_, err := tx.Exec(
				`INSERT INTO schema_migrations (version, applied_at) VALUES (?, strftime('%s', 'now'))`,
				m.Version,
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %d for %s: %w", m.Version, db.name, err)
		}

		log.Info().
			Int("version", m.Version).
			Str("description", m.Description).
			Msg("Applied migration")
	}

	return nil
}

// schemaVersion returns the highest applied migration version, 0 when none
func (db *DB) schemaVersion() (int, error) {
	var version sql.NullInt64
	err := db.conn.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
