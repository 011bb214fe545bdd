package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSnapshotService struct {
	captures     int
	captureErr   error
	removed      int64
	retentionErr error
}

func (s *stubSnapshotService) Capture() error {
	s.captures++
	return s.captureErr
}

func (s *stubSnapshotService) EnforceRetention() (int64, error) {
	return s.removed, s.retentionErr
}

type stubCheckpointer struct {
	mode string
	err  error
}

func (s *stubCheckpointer) WALCheckpoint(mode string) error {
	s.mode = mode
	return s.err
}

type stubBackupService struct {
	runs        int
	err         error
	hadDeadline bool
}

func (s *stubBackupService) Run(ctx context.Context) error {
	s.runs++
	_, s.hadDeadline = ctx.Deadline()
	return s.err
}

func TestSnapshotJob(t *testing.T) {
	snaps := &stubSnapshotService{}
	job := NewSnapshotJob(snaps, zerolog.Nop())

	assert.Equal(t, "snapshot_capture", job.Name())

	require.NoError(t, job.Run())
	assert.Equal(t, 1, snaps.captures)

	snaps.captureErr = errors.New("book unavailable")
	assert.Error(t, job.Run())
}

func TestRetentionJob(t *testing.T) {
	snaps := &stubSnapshotService{removed: 42}
	job := NewRetentionJob(snaps, zerolog.Nop())

	assert.Equal(t, "snapshot_retention", job.Name())
	require.NoError(t, job.Run())

	snaps.removed = 0
	require.NoError(t, job.Run(), "nothing to prune is not an error")

	snaps.retentionErr = errors.New("prune failed")
	assert.Error(t, job.Run())
}

func TestWALCheckpointJob(t *testing.T) {
	db := &stubCheckpointer{}
	job := NewWALCheckpointJob(db, zerolog.Nop())

	assert.Equal(t, "wal_checkpoint", job.Name())

	require.NoError(t, job.Run())
	assert.Equal(t, "TRUNCATE", db.mode)

	db.err = errors.New("checkpoint failed")
	assert.Error(t, job.Run())
}

func TestBackupJob(t *testing.T) {
	backup := &stubBackupService{}
	job := NewBackupJob(backup, zerolog.Nop())

	assert.Equal(t, "ledger_backup", job.Name())

	require.NoError(t, job.Run())
	assert.Equal(t, 1, backup.runs)
	assert.True(t, backup.hadDeadline, "backup runs should be bounded by a timeout")

	backup.err = errors.New("upload failed")
	assert.Error(t, job.Run())
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.AddJob("@every 1h", NewSnapshotJob(&stubSnapshotService{}, zerolog.Nop()))
	assert.NoError(t, err)

	// Six fields, seconds included.
	err = s.AddJob("0 */5 * * * *", NewSnapshotJob(&stubSnapshotService{}, zerolog.Nop()))
	assert.NoError(t, err)

	err = s.AddJob("not a schedule", NewSnapshotJob(&stubSnapshotService{}, zerolog.Nop()))
	assert.Error(t, err)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	snaps := &stubSnapshotService{}

	require.NoError(t, s.RunNow(NewSnapshotJob(snaps, zerolog.Nop())))
	assert.Equal(t, 1, snaps.captures, "RunNow executes outside the schedule")

	snaps.captureErr = errors.New("boom")
	assert.Error(t, s.RunNow(NewSnapshotJob(snaps, zerolog.Nop())))
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@every 1h", NewSnapshotJob(&stubSnapshotService{}, zerolog.Nop())))

	s.Start()
	s.Stop()
}
