package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFileDB opens a fresh file-backed database. File-backed rather than
// in-memory because the pure Go driver gives every pooled connection its own
// private :memory: database.
func newFileDB(t *testing.T, profile DatabaseProfile) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "test.db"),
		Profile: profile,
		Name:    "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// newTestTable gives transaction tests something to write to
func newTestTable(t *testing.T, db *DB) {
	t.Helper()

	_, err := db.Conn().Exec(`CREATE TABLE IF NOT EXISTS test_table (
		id INTEGER PRIMARY KEY,
		value TEXT NOT NULL
	)`)
	require.NoError(t, err)
}

func TestNew_ProfilePragmas(t *testing.T) {
	testCases := []struct {
		profile     DatabaseProfile
		synchronous int // 0=OFF, 1=NORMAL, 2=FULL
	}{
		{profile: ProfileLedger, synchronous: 2},
		{profile: ProfileCache, synchronous: 0},
		{profile: ProfileStandard, synchronous: 1},
	}

	for _, tc := range testCases {
		t.Run(string(tc.profile), func(t *testing.T) {
			db := newFileDB(t, tc.profile)

			var journalMode string
			require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
			assert.Equal(t, "wal", journalMode)

			var synchronous int
			require.NoError(t, db.QueryRow("PRAGMA synchronous").Scan(&synchronous))
			assert.Equal(t, tc.synchronous, synchronous)

			var foreignKeys int
			require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
			assert.Equal(t, 1, foreignKeys)
		})
	}
}

func TestNew_DefaultsToStandardProfile(t *testing.T) {
	db, err := New(Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
		Name: "test",
	})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, ProfileStandard, db.Profile())
}

func TestNew_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "test.db")

	db, err := New(Config{Path: path, Profile: ProfileStandard, Name: "test"})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file should exist at the resolved path")
}

func TestWithTransaction_CommitsOnSuccess(t *testing.T) {
	db := newFileDB(t, ProfileStandard)
	newTestTable(t, db)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO test_table (value) VALUES (?)", "committed")
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM test_table").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newFileDB(t, ProfileStandard)
	newTestTable(t, db)

	boom := errors.New("boom")
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO test_table (value) VALUES (?)", "discarded"); err != nil {
			return err
		}
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "transaction")

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM test_table").Scan(&count))
	assert.Equal(t, 0, count, "insert should have been rolled back")
}

func TestWithTransaction_RollsBackOnPanic(t *testing.T) {
	db := newFileDB(t, ProfileStandard)
	newTestTable(t, db)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO test_table (value) VALUES (?)", "discarded"); err != nil {
			return err
		}
		panic("mid-transaction crash")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
	assert.Contains(t, err.Error(), "mid-transaction crash")

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM test_table").Scan(&count))
	assert.Equal(t, 0, count, "insert should have been rolled back")
}

func TestWithTransaction_MultipleOperations(t *testing.T) {
	db := newFileDB(t, ProfileStandard)
	newTestTable(t, db)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		for i := 0; i < 5; i++ {
			if _, err := tx.Exec("INSERT INTO test_table (value) VALUES (?)", fmt.Sprintf("value-%d", i)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM test_table").Scan(&count))
	assert.Equal(t, 5, count)
}

func TestWithTransaction_NilDB(t *testing.T) {
	err := WithTransaction(nil, func(tx *sql.Tx) error { return nil })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil")
}

func TestHealthCheck(t *testing.T) {
	db := newFileDB(t, ProfileLedger)
	newTestTable(t, db)

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, db.QuickCheck(context.Background()))
}

func TestWALCheckpoint(t *testing.T) {
	db := newFileDB(t, ProfileLedger)
	newTestTable(t, db)

	for i := 0; i < 50; i++ {
		_, err := db.Exec("INSERT INTO test_table (value) VALUES (?)", fmt.Sprintf("row-%d", i))
		require.NoError(t, err)
	}

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.WALSizeBytes, int64(0), "writes should have landed in the WAL")

	// Empty mode defaults to TRUNCATE, which resets the WAL file.
	require.NoError(t, db.WALCheckpoint(""))

	stats, err = db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.WALSizeBytes)

	require.NoError(t, db.WALCheckpoint("PASSIVE"))
}

func TestVacuum(t *testing.T) {
	db := newFileDB(t, ProfileStandard)
	newTestTable(t, db)

	assert.NoError(t, db.Vacuum())
}

func TestGetStats(t *testing.T) {
	db := newFileDB(t, ProfileLedger)
	newTestTable(t, db)

	_, err := db.Exec("INSERT INTO test_table (value) VALUES (?)", "row")
	require.NoError(t, err)
	require.NoError(t, db.WALCheckpoint(""))

	stats, err := db.GetStats()
	require.NoError(t, err)

	assert.Greater(t, stats.SizeBytes, int64(0))
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}

func TestAccessors(t *testing.T) {
	db := newFileDB(t, ProfileLedger)

	assert.Equal(t, "test", db.Name())
	assert.Equal(t, ProfileLedger, db.Profile())
	assert.True(t, filepath.IsAbs(db.Path()))
	assert.NotNil(t, db.Conn())
}
