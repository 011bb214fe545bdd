// Package di provides dependency injection wiring and initialization.
//
// The Container is the single source of truth for all service instances. It
// is created by Wire() and handed to the HTTP server and the scheduler.
package di

import (
	"github.com/aristath/papertrader/internal/database"
	"github.com/aristath/papertrader/internal/modules/metrics"
	"github.com/aristath/papertrader/internal/modules/portfolio"
	"github.com/aristath/papertrader/internal/modules/risk"
	"github.com/aristath/papertrader/internal/modules/snapshots"
	"github.com/aristath/papertrader/internal/modules/trading"
	"github.com/aristath/papertrader/internal/services/backup"
)

// Container holds all dependencies for the application
type Container struct {
	// Databases
	LedgerDB *database.DB // positions, trades, snapshots; maximum-durability profile

	// Repositories - data access layer
	PositionRepo *portfolio.PositionRepository
	TradeRepo    *trading.TradeRepository
	SnapshotRepo *snapshots.SnapshotRepository

	// Services - business logic layer
	RiskCalculator  *risk.Calculator
	Ledger          *trading.Ledger
	Book            *portfolio.Book
	SnapshotService *snapshots.Service
	MetricsEngine   *metrics.Engine
	BackupService   *backup.Service // nil when backups are disabled
}
