package db

import (
	"database/sql"
	"fmt"

	"github.com/goran-ethernal/ChainIndexor/pkg/config"
	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDBFromConfig opens the event store's SQLite file with the given
// connection-pool and PRAGMA settings applied.
func NewSQLiteDBFromConfig(cfg config.DatabaseConfig) (*sql.DB, error) {
	foreignKeys := "off"
	if cfg.EnableForeignKeys {
		foreignKeys = "on"
	}

	connStr := fmt.Sprintf(
		"file:%s?_txlock=immediate&_foreign_keys=%s&_journal_mode=%s&_busy_timeout=%d",
		cfg.Path,
		foreignKeys,
		cfg.JournalMode,
		cfg.BusyTimeout,
	)

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConnections)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConnections)

	pragmas := []string{
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.Synchronous),
		fmt.Sprintf("PRAGMA cache_size = %d", cfg.CacheSize),
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return sqlDB, nil
}

// defaultMigrationDBConfig returns the connection settings used to open the
// database for running schema migrations, before the long-lived connection
// pool (with its caller-tuned cache size and concurrency limits) is opened.
func defaultMigrationDBConfig(dbPath string) config.DatabaseConfig {
	cfg := config.DatabaseConfig{Path: dbPath}
	cfg.ApplyDefaults()
	return cfg
}
