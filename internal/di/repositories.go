package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/papertrader/internal/modules/portfolio"
	"github.com/aristath/papertrader/internal/modules/snapshots"
	"github.com/aristath/papertrader/internal/modules/trading"
)

// InitializeRepositories creates all repositories and stores them in the container
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Position repository (needs ledgerDB)
	container.PositionRepo = portfolio.NewPositionRepository(
		container.LedgerDB.Conn(),
		log,
	)

	// Trade repository (needs ledgerDB)
	container.TradeRepo = trading.NewTradeRepository(
		container.LedgerDB.Conn(),
		log,
	)

	// Snapshot repository (needs ledgerDB)
	container.SnapshotRepo = snapshots.NewSnapshotRepository(
		container.LedgerDB.Conn(),
		log,
	)

	log.Info().Msg("All repositories initialized")

	return nil
}
