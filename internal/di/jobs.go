package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/papertrader/internal/config"
	"github.com/aristath/papertrader/internal/scheduler"
)

// JobInstances holds the constructed background jobs so callers can trigger
// them manually (for example on shutdown or from tests).
type JobInstances struct {
	Snapshot      *scheduler.SnapshotJob
	Retention     *scheduler.RetentionJob
	WALCheckpoint *scheduler.WALCheckpointJob
	Backup        *scheduler.BackupJob // nil when backups are disabled
}

// RegisterJobs constructs the background jobs and registers them with the
// scheduler under the configured cron expressions.
func RegisterJobs(sched *scheduler.Scheduler, container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	jobs := &JobInstances{
		Snapshot:      scheduler.NewSnapshotJob(container.SnapshotService, log),
		Retention:     scheduler.NewRetentionJob(container.SnapshotService, log),
		WALCheckpoint: scheduler.NewWALCheckpointJob(container.LedgerDB, log),
	}

	if err := sched.AddJob(cfg.Schedules.Snapshot, jobs.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to register snapshot job: %w", err)
	}

	if err := sched.AddJob(cfg.Schedules.Retention, jobs.Retention); err != nil {
		return nil, fmt.Errorf("failed to register retention job: %w", err)
	}

	if err := sched.AddJob(cfg.Schedules.WALCheckpoint, jobs.WALCheckpoint); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}

	if container.BackupService != nil {
		jobs.Backup = scheduler.NewBackupJob(container.BackupService, log)
		if err := sched.AddJob(cfg.Schedules.Backup, jobs.Backup); err != nil {
			return nil, fmt.Errorf("failed to register backup job: %w", err)
		}
	}

	return jobs, nil
}
