package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/papertrader/internal/config"
	"github.com/aristath/papertrader/internal/modules/metrics"
	"github.com/aristath/papertrader/internal/modules/portfolio"
	"github.com/aristath/papertrader/internal/modules/risk"
	"github.com/aristath/papertrader/internal/modules/snapshots"
	"github.com/aristath/papertrader/internal/modules/trading"
	"github.com/aristath/papertrader/internal/services/backup"
)

// InitializeServices creates all services and stores them in the container
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	t := cfg.Trading

	// Risk calculator (pure, needs only the configured limits)
	container.RiskCalculator = risk.NewCalculator(risk.Limits{
		MinCapital:        t.MinCapital,
		MaxPositionRatio:  t.MaxPositionRatio,
		MaxDailyLossRatio: t.MaxDailyLossRatio,
		MinTradeAmount:    t.MinTradeAmount,
	})

	// Trade ledger (needs trade repository)
	container.Ledger = trading.NewLedger(container.TradeRepo, log)

	// Position book (needs ledgerDB for transactions plus all three stores)
	container.Book = portfolio.NewBook(
		container.LedgerDB.Conn(),
		container.PositionRepo,
		container.Ledger,
		container.SnapshotRepo,
		container.RiskCalculator,
		portfolio.BookConfig{
			InitialCapital:   t.InitialCapital,
			FeeRate:          t.FeeRate,
			MaxOpenPositions: t.MaxOpenPositions,
		},
		log,
	)

	// Snapshot service (needs snapshot repository and the book)
	container.SnapshotService = snapshots.NewService(
		container.SnapshotRepo,
		container.Book,
		t.SnapshotRetention,
		log,
	)

	// Metrics engine (read-only over ledger, snapshots and the book)
	container.MetricsEngine = metrics.NewEngine(
		container.Ledger,
		container.SnapshotService,
		container.Book,
		t.SnapshotRetention,
		t.MaxOpenPositions,
		log,
	)

	// Backup service (optional)
	if cfg.Backup.Enabled() {
		if err := initializeBackupService(container, cfg, log); err != nil {
			return err
		}
	}

	log.Info().Msg("All services initialized")

	return nil
}

// initializeBackupService wires the archive writer and, when a bucket is
// configured, the S3 uploader.
func initializeBackupService(container *Container, cfg *config.Config, log zerolog.Logger) error {
	dir := cfg.Backup.Dir
	if dir == "" {
		dir = filepath.Join(cfg.DataDir, "backups")
	}

	var uploader backup.Uploader
	if cfg.Backup.S3Bucket != "" {
		s3Uploader, err := backup.NewS3Uploader(context.Background(), backup.S3Config{
			Bucket:    cfg.Backup.S3Bucket,
			Region:    cfg.Backup.S3Region,
			Endpoint:  cfg.Backup.S3Endpoint,
			AccessKey: cfg.Backup.S3AccessKey,
			SecretKey: cfg.Backup.S3SecretKey,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize S3 uploader: %w", err)
		}
		uploader = s3Uploader
	}

	container.BackupService = backup.New(
		backup.Config{
			Dir:               dir,
			S3Prefix:          cfg.Backup.S3Prefix,
			SnapshotRetention: cfg.Trading.SnapshotRetention,
		},
		container.PositionRepo,
		container.Ledger,
		container.SnapshotService,
		uploader,
		log,
	)

	return nil
}
