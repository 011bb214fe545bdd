package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// backupTimeout bounds a single backup run including the S3 upload.
const backupTimeout = 5 * time.Minute

// BackupJob archives the ledger state through the backup service
type BackupJob struct {
	log    zerolog.Logger
	backup BackupServiceInterface
}

// NewBackupJob creates a new BackupJob
func NewBackupJob(backup BackupServiceInterface, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		log:    log.With().Str("job", "backup").Logger(),
		backup: backup,
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "ledger_backup"
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	return j.backup.Run(ctx)
}
