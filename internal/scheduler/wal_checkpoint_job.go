package scheduler

import "github.com/rs/zerolog"

// WALCheckpointJob truncates the ledger WAL so the file cannot grow unbounded
// between restarts.
type WALCheckpointJob struct {
	log      zerolog.Logger
	ledgerDB CheckpointerInterface
}

// NewWALCheckpointJob creates a new WALCheckpointJob
func NewWALCheckpointJob(ledgerDB CheckpointerInterface, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		log:      log.With().Str("job", "wal_checkpoint").Logger(),
		ledgerDB: ledgerDB,
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run executes the WAL checkpoint job
func (j *WALCheckpointJob) Run() error {
	if err := j.ledgerDB.WALCheckpoint("TRUNCATE"); err != nil {
		return err
	}

	j.log.Debug().Msg("WAL checkpoint completed")
	return nil
}
