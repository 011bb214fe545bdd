package scheduler

import "github.com/rs/zerolog"

// SnapshotJob captures a portfolio snapshot on each tick
type SnapshotJob struct {
	log   zerolog.Logger
	snaps SnapshotServiceInterface
}

// NewSnapshotJob creates a new SnapshotJob
func NewSnapshotJob(snaps SnapshotServiceInterface, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		log:   log.With().Str("job", "snapshot").Logger(),
		snaps: snaps,
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "snapshot_capture"
}

// Run executes the snapshot capture job
func (j *SnapshotJob) Run() error {
	return j.snaps.Capture()
}
