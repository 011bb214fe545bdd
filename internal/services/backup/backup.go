// Package backup archives the full ledger state into msgpack files and
// optionally ships them to S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/utils"
)

// ArchiveVersion identifies the archive layout. Bump on incompatible changes
// to the Archive struct.
const ArchiveVersion = 1

// Archive is the serialized ledger state: everything needed to rebuild the
// book on another machine.
type Archive struct {
	Version   int                        `msgpack:"version"`
	CreatedAt time.Time                  `msgpack:"created_at"`
	Positions []domain.Position          `msgpack:"positions"`
	Trades    []domain.Trade             `msgpack:"trades"`
	Snapshots []domain.PortfolioSnapshot `msgpack:"snapshots"`
}

// PositionSource provides the active positions to archive
type PositionSource interface {
	GetAllActive() ([]domain.Position, error)
}

// TradeSource provides the trade history to archive
type TradeSource interface {
	AllAfter(after time.Time) ([]domain.Trade, error)
}

// SnapshotSource provides the retained snapshot history to archive
type SnapshotSource interface {
	Recent(limit int) ([]domain.PortfolioSnapshot, error)
}

// Uploader ships a finished archive to remote storage
type Uploader interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
}

// Config holds backup service settings
type Config struct {
	Dir               string // local archive directory
	S3Prefix          string // key prefix for uploaded archives
	SnapshotRetention int    // how many snapshots to include
}

// Service writes ledger archives and ships them off-site
type Service struct {
	log       zerolog.Logger
	dir       string
	prefix    string
	retention int
	positions PositionSource
	trades    TradeSource
	snaps     SnapshotSource
	uploader  Uploader
}

// New creates a backup service. uploader may be nil, which disables the
// remote copy and keeps only local archives.
func New(
	cfg Config,
	positions PositionSource,
	trades TradeSource,
	snaps SnapshotSource,
	uploader Uploader,
	log zerolog.Logger,
) *Service {
	return &Service{
		log:       log.With().Str("service", "backup").Logger(),
		dir:       cfg.Dir,
		prefix:    cfg.S3Prefix,
		retention: cfg.SnapshotRetention,
		positions: positions,
		trades:    trades,
		snaps:     snaps,
		uploader:  uploader,
	}
}

// Run collects the ledger state, writes a local msgpack archive and uploads
// it when remote storage is configured. The local file is written before any
// upload attempt; an upload failure is logged but does not fail the run.
func (s *Service) Run(ctx context.Context) error {
	defer utils.OperationTimer("ledger_backup", s.log)()

	archive, err := s.collect()
	if err != nil {
		return err
	}

	payload, err := msgpack.Marshal(archive)
	if err != nil {
		return fmt.Errorf("failed to encode archive: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := fmt.Sprintf("ledger-%s.msgpack", archive.CreatedAt.Format("20060102T150405Z"))
	localPath := filepath.Join(s.dir, name)
	if err := os.WriteFile(localPath, payload, 0644); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	s.log.Info().
		Str("path", localPath).
		Int("positions", len(archive.Positions)).
		Int("trades", len(archive.Trades)).
		Int("snapshots", len(archive.Snapshots)).
		Int("bytes", len(payload)).
		Msg("Ledger archive written")

	if s.uploader == nil {
		return nil
	}

	key := path.Join(s.prefix, name)
	if err := s.uploader.Put(ctx, key, bytes.NewReader(payload), "application/x-msgpack"); err != nil {
		// The local file is kept either way.
		s.log.Error().Err(err).Str("key", key).Msg("Failed to upload archive")
		return nil
	}

	s.log.Info().Str("key", key).Msg("Ledger archive uploaded")
	return nil
}

// collect reads the current state from all three stores
func (s *Service) collect() (*Archive, error) {
	positions, err := s.positions.GetAllActive()
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	trades, err := s.trades.AllAfter(time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to read trades: %w", err)
	}

	snapshots, err := s.snaps.Recent(s.retention)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}

	return &Archive{
		Version:   ArchiveVersion,
		CreatedAt: time.Now().UTC(),
		Positions: positions,
		Trades:    trades,
		Snapshots: snapshots,
	}, nil
}

// ReadArchive loads an archive previously written by Run
func ReadArchive(path string) (*Archive, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	var archive Archive
	if err := msgpack.Unmarshal(payload, &archive); err != nil {
		return nil, fmt.Errorf("failed to decode archive: %w", err)
	}

	return &archive, nil
}
