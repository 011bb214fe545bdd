package scheduler

import "context"

// SnapshotServiceInterface defines the contract for snapshot service operations
// Used by scheduler to enable testing with mocks
type SnapshotServiceInterface interface {
	Capture() error
	EnforceRetention() (int64, error)
}

// CheckpointerInterface defines the contract for database checkpoint operations
// Used by scheduler to enable testing with mocks
type CheckpointerInterface interface {
	WALCheckpoint(mode string) error
}

// BackupServiceInterface defines the contract for backup service operations
// Used by scheduler to enable testing with mocks
type BackupServiceInterface interface {
	Run(ctx context.Context) error
}
