package db

import (
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/goran-ethernal/ChainIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

// setupEventStoreDB opens a fresh on-disk SQLite database with a single
// table pre-populated, mirroring the write volume a realtime sync core
// pushes into its event store between maintenance runs.
func setupEventStoreDB(t *testing.T, journal string) (*sql.DB, string, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "eventstore_test_*.db")
	require.NoError(t, err)
	tmpFile.Close()

	dbPath := tmpFile.Name()

	dbConfig := config.DatabaseConfig{Path: dbPath, JournalMode: journal}
	dbConfig.ApplyDefaults()

	sqlDB, err := NewSQLiteDBFromConfig(dbConfig)
	require.NoError(t, err)

	_, err = sqlDB.Exec(`CREATE TABLE IF NOT EXISTS blockLog (id INTEGER PRIMARY KEY, blockHash TEXT);`)
	require.NoError(t, err)

	for i := range 5000 {
		_, err = sqlDB.Exec(`INSERT INTO blockLog (blockHash) VALUES (?);`, fmt.Sprintf("0xblock%d", i))
		require.NoError(t, err)
	}

	cleanup := func() {
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return sqlDB, dbPath, cleanup
}

func TestNewSQLiteDBFromConfig_AppliesPragmas(t *testing.T) {
	t.Parallel()

	cfg := config.DatabaseConfig{Path: t.TempDir() + "/events.db", JournalMode: "WAL", Synchronous: "NORMAL", CacheSize: -2000}
	cfg.ApplyDefaults()

	sqlDB, err := NewSQLiteDBFromConfig(cfg)
	require.NoError(t, err)
	defer sqlDB.Close()

	var mode string
	require.NoError(t, sqlDB.QueryRow("PRAGMA journal_mode").Scan(&mode))
	require.Equal(t, "wal", mode)

	var sync int
	require.NoError(t, sqlDB.QueryRow("PRAGMA synchronous").Scan(&sync))
}

func TestVacuum_ReclaimsSpaceAfterDelete(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		journalMode string
	}{
		{name: "WAL", journalMode: "WAL"},
		{name: "NonWAL", journalMode: "TRUNCATE"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sqlDB, dbPath, cleanup := setupEventStoreDB(t, tc.journalMode)
			defer cleanup()

			_, err := sqlDB.Exec(`DELETE FROM blockLog WHERE id > 10`)
			require.NoError(t, err)

			initialSize, err := DBTotalSize(dbPath)
			require.NoError(t, err)

			require.NoError(t, Vacuum(sqlDB))

			finalSize, err := DBTotalSize(dbPath)
			require.NoError(t, err)

			require.LessOrEqual(t, finalSize, initialSize)
		})
	}
}

func TestDBTotalSize(t *testing.T) {
	testCases := []struct {
		name        string
		setup       func(paths []string) error
		walAndSHM   bool
		expectSize  int64
		expectError bool
	}{
		{
			name: "MainFileOnly",
			setup: func(paths []string) error {
				return os.WriteFile(paths[0], []byte("main-db-content"), 0644)
			},
			expectSize: int64(len("main-db-content")),
		},
		{
			name:      "MainPlusWALAndSHMSiblings",
			walAndSHM: true,
			setup: func(paths []string) error {
				if err := os.WriteFile(paths[0], []byte("main-db"), 0644); err != nil {
					return err
				}
				if err := os.WriteFile(paths[1], []byte("wal-content"), 0644); err != nil {
					return err
				}
				return os.WriteFile(paths[2], []byte("shm-content"), 0644)
			},
			expectSize: int64(len("main-db") + len("wal-content") + len("shm-content")),
		},
		{
			name:       "MissingFilesCountAsZero",
			setup:      func(paths []string) error { return nil },
			expectSize: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			mainPath := tmpDir + "/events.db"
			paths := []string{mainPath}
			if tc.walAndSHM {
				paths = append(paths, mainPath+"-wal", mainPath+"-shm")
			}

			require.NoError(t, tc.setup(paths))
			defer func() {
				for _, p := range paths {
					os.Remove(p)
				}
			}()

			size, err := DBTotalSize(mainPath)
			if tc.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expectSize, size)
		})
	}
}
