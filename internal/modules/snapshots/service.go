package snapshots

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/papertrader/internal/domain"
)

// BookStateProvider supplies the current portfolio aggregate. Defined here so
// the snapshots package does not import the position book.
type BookStateProvider interface {
	CurrentSnapshot() (domain.PortfolioSnapshot, error)
}

// Service captures periodic snapshots and enforces the retention policy
type Service struct {
	repo      *SnapshotRepository
	book      BookStateProvider
	retention int
	log       zerolog.Logger
}

// NewService creates the snapshot service
func NewService(repo *SnapshotRepository, book BookStateProvider, retention int, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		book:      book,
		retention: retention,
		log:       log.With().Str("service", "snapshots").Logger(),
	}
}

// Capture appends one snapshot of the current portfolio state. Mark-to-market
// already appends a snapshot on every price update; this path covers quiet
// periods when no prices arrive.
func (s *Service) Capture() error {
	snap, err := s.book.CurrentSnapshot()
	if err != nil {
		return err
	}

	if err := s.repo.Insert(&snap); err != nil {
		return err
	}

	s.log.Debug().
		Str("total_value", snap.TotalValue.String()).
		Int("positions", snap.PositionsCount).
		Msg("Snapshot captured")

	return nil
}

// Latest returns the most recent snapshot, or nil when none exists
func (s *Service) Latest() (*domain.PortfolioSnapshot, error) {
	return s.repo.Latest()
}

// Recent returns the newest N snapshots in chronological order
func (s *Service) Recent(limit int) ([]domain.PortfolioSnapshot, error) {
	return s.repo.GetRecent(limit)
}

// Range returns snapshots within the window, oldest first
func (s *Service) Range(from, to time.Time) ([]domain.PortfolioSnapshot, error) {
	return s.repo.GetAllInRange(from, to)
}

// EnforceRetention prunes the series down to the configured cap
func (s *Service) EnforceRetention() (int64, error) {
	removed, err := s.repo.Prune(s.retention)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.log.Info().Int64("removed", removed).Int("retention", s.retention).Msg("Snapshot retention enforced")
	}

	return removed, nil
}
