package scheduler

import "github.com/rs/zerolog"

// RetentionJob prunes snapshot history beyond the configured retention cap
type RetentionJob struct {
	log   zerolog.Logger
	snaps SnapshotServiceInterface
}

// NewRetentionJob creates a new RetentionJob
func NewRetentionJob(snaps SnapshotServiceInterface, log zerolog.Logger) *RetentionJob {
	return &RetentionJob{
		log:   log.With().Str("job", "retention").Logger(),
		snaps: snaps,
	}
}

// Name returns the job name
func (j *RetentionJob) Name() string {
	return "snapshot_retention"
}

// Run executes the retention job
func (j *RetentionJob) Run() error {
	removed, err := j.snaps.EnforceRetention()
	if err != nil {
		return err
	}

	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("Pruned snapshot history")
	}

	return nil
}
