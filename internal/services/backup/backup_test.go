package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/papertrader/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type stubPositions struct {
	positions []domain.Position
	err       error
}

func (s *stubPositions) GetAllActive() ([]domain.Position, error) {
	return s.positions, s.err
}

type stubTrades struct {
	trades   []domain.Trade
	err      error
	gotAfter time.Time
}

func (s *stubTrades) AllAfter(after time.Time) ([]domain.Trade, error) {
	s.gotAfter = after
	return s.trades, s.err
}

type stubSnapshots struct {
	snaps    []domain.PortfolioSnapshot
	err      error
	gotLimit int
}

func (s *stubSnapshots) Recent(limit int) ([]domain.PortfolioSnapshot, error) {
	s.gotLimit = limit
	return s.snaps, s.err
}

type fakeUploader struct {
	key         string
	contentType string
	payload     []byte
	calls       int
	err         error
}

func (f *fakeUploader) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	f.calls++
	f.key = key
	f.contentType = contentType
	payload, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.payload = payload
	return f.err
}

func sampleState() (*stubPositions, *stubTrades, *stubSnapshots) {
	positions := &stubPositions{positions: []domain.Position{{
		EntryTime:    time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Symbol:       "BTC",
		Side:         domain.SideLong,
		Quantity:     d("2.5"),
		EntryPrice:   d("10.00"),
		CurrentPrice: d("10.40"),
		StopLoss:     d("9.8"),
		TakeProfit:   d("10.8"),
		FeesPaid:     d("0.025"),
	}}}

	trades := &stubTrades{trades: []domain.Trade{
		{
			Timestamp: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
			ID:        "open_BTC_1",
			Symbol:    "BTC",
			Side:      domain.OrderSideBuy,
			Status:    domain.TradeStatusOpen,
			Quantity:  d("2.5"),
			Price:     d("10.00"),
			Fees:      d("0.025"),
		},
		{
			Timestamp: time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
			ID:        "close_BTC_1",
			Symbol:    "BTC",
			Side:      domain.OrderSideSell,
			Status:    domain.TradeStatusClosed,
			Quantity:  d("2.5"),
			Price:     d("10.40"),
			Fees:      d("0.026"),
			PnL:       d("0.949"),
		},
	}}

	snaps := &stubSnapshots{snaps: []domain.PortfolioSnapshot{{
		Timestamp:     time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
		TotalValue:    d("100.949"),
		AvailableCash: d("100.949"),
		RealizedPnL:   d("0.949"),
		TotalFeesPaid: d("0.051"),
	}}}

	return positions, trades, snaps
}

func archivePath(t *testing.T, dir string) string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	return filepath.Join(dir, entries[0].Name())
}

func TestService_Run_WritesArchive(t *testing.T) {
	dir := t.TempDir()
	positions, trades, snaps := sampleState()

	svc := New(Config{Dir: dir, SnapshotRetention: 500}, positions, trades, snaps, nil, zerolog.Nop())
	require.NoError(t, svc.Run(context.Background()))

	path := archivePath(t, dir)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "ledger-"))
	assert.True(t, strings.HasSuffix(path, ".msgpack"))

	archive, err := ReadArchive(path)
	require.NoError(t, err)

	assert.Equal(t, ArchiveVersion, archive.Version)
	assert.False(t, archive.CreatedAt.IsZero())

	require.Len(t, archive.Positions, 1)
	assert.Equal(t, "BTC", archive.Positions[0].Symbol)
	assert.True(t, archive.Positions[0].Quantity.Equal(d("2.5")))
	assert.True(t, archive.Positions[0].StopLoss.Equal(d("9.8")))

	require.Len(t, archive.Trades, 2)
	assert.Equal(t, "open_BTC_1", archive.Trades[0].ID)
	assert.True(t, archive.Trades[1].PnL.Equal(d("0.949")))
	assert.True(t, archive.Trades[0].Timestamp.Equal(trades.trades[0].Timestamp))

	require.Len(t, archive.Snapshots, 1)
	assert.True(t, archive.Snapshots[0].TotalValue.Equal(d("100.949")))

	// The full trade history is archived, not a window.
	assert.True(t, trades.gotAfter.IsZero())
	assert.Equal(t, 500, snaps.gotLimit)
}

func TestService_Run_UploadsWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	positions, trades, snaps := sampleState()
	uploader := &fakeUploader{}

	svc := New(
		Config{Dir: dir, S3Prefix: "papertrader/backups", SnapshotRetention: 100},
		positions, trades, snaps, uploader, zerolog.Nop(),
	)
	require.NoError(t, svc.Run(context.Background()))

	assert.Equal(t, 1, uploader.calls)
	assert.True(t, strings.HasPrefix(uploader.key, "papertrader/backups/ledger-"), "key = %s", uploader.key)
	assert.True(t, strings.HasSuffix(uploader.key, ".msgpack"))
	assert.Equal(t, "application/x-msgpack", uploader.contentType)

	// The uploaded payload is the same archive that landed on disk.
	local, err := os.ReadFile(archivePath(t, dir))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(local, uploader.payload))

	var archive Archive
	require.NoError(t, msgpack.Unmarshal(uploader.payload, &archive))
	assert.Len(t, archive.Trades, 2)
}

func TestService_Run_UploadFailureKeepsLocalArchive(t *testing.T) {
	dir := t.TempDir()
	positions, trades, snaps := sampleState()
	uploader := &fakeUploader{err: errors.New("bucket unreachable")}

	svc := New(
		Config{Dir: dir, S3Prefix: "backups", SnapshotRetention: 100},
		positions, trades, snaps, uploader, zerolog.Nop(),
	)

	require.NoError(t, svc.Run(context.Background()), "a failed upload must not fail the run")

	_, err := ReadArchive(archivePath(t, dir))
	assert.NoError(t, err, "local archive survives the failed upload")
}

func TestService_Run_SourceErrorFailsRun(t *testing.T) {
	dir := t.TempDir()
	positions, trades, snaps := sampleState()
	positions.err = errors.New("positions table locked")

	svc := New(Config{Dir: dir, SnapshotRetention: 100}, positions, trades, snaps, nil, zerolog.Nop())

	require.Error(t, svc.Run(context.Background()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no archive should be written when collection fails")
}

func TestReadArchive_MissingFile(t *testing.T) {
	_, err := ReadArchive(filepath.Join(t.TempDir(), "nope.msgpack"))
	assert.Error(t, err)
}

func TestReadArchive_CorruptPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.msgpack")
	require.NoError(t, os.WriteFile(path, []byte("not msgpack at all"), 0644))

	_, err := ReadArchive(path)
	assert.Error(t, err)
}

func TestNewS3Uploader_Validation(t *testing.T) {
	_, err := NewS3Uploader(context.Background(), S3Config{Region: "eu-central-1"})
	assert.Error(t, err, "bucket is required")

	_, err = NewS3Uploader(context.Background(), S3Config{Bucket: "backups"})
	assert.Error(t, err, "region is required")
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://minio.local:9000", normaliseEndpoint("minio.local:9000"))
	assert.Equal(t, "http://127.0.0.1:9000", normaliseEndpoint("http://127.0.0.1:9000"))
	assert.Equal(t, "https://r2.example.com", normaliseEndpoint("https://r2.example.com"))
}
