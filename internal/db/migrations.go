package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/goran-ethernal/ChainIndexor/internal/logger"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
)

const (
	upDownSeparator = "-- +migrate Up"
	downMarker      = "-- +migrate Down"
	migrationParts  = 2
)

// Migration is one embedded .sql file containing both the "-- +migrate Up"
// and "-- +migrate Down" sections sql-migrate expects.
type Migration struct {
	ID  string
	SQL string
}

// RunMigrations opens dbPath and applies every migration not yet recorded
// in its migrations table.
func RunMigrations(dbPath string, migrations []Migration) error {
	sqlDB, err := NewSQLiteDBFromConfig(defaultMigrationDBConfig(dbPath))
	if err != nil {
		return fmt.Errorf("error creating DB %w", err)
	}
	return RunMigrationsDB(logger.GetDefaultLogger(), sqlDB, migrations)
}

// RunMigrationsDB applies every migration not yet recorded against an
// already-open database handle.
func RunMigrationsDB(log *logger.Logger, sqlDB *sql.DB, migrations []Migration) error {
	migs := &migrate.MemoryMigrationSource{Migrations: make([]*migrate.Migration, 0, len(migrations))}

	for _, m := range migrations {
		up, down, err := splitMigration(m)
		if err != nil {
			return err
		}
		migs.Migrations = append(migs.Migrations, &migrate.Migration{
			Id:   m.ID,
			Up:   []string{up},
			Down: []string{down},
		})
	}

	var ids strings.Builder
	for _, m := range migs.Migrations {
		ids.WriteString(m.Id + ", ")
	}

	log.Debugf("running %d migrations: %s", len(migs.Migrations), ids.String())
	n, err := migrate.ExecMax(sqlDB, "sqlite3", migs, migrate.Up, 0)
	if err != nil {
		return fmt.Errorf("error executing migrations (%s): %w", ids.String(), err)
	}

	log.Infof("applied %d migrations: %s", n, ids.String())
	return nil
}

// splitMigration separates a migration's combined SQL into its up and down
// sections on the "-- +migrate Up"/"-- +migrate Down" markers.
func splitMigration(m Migration) (up, down string, err error) {
	parts := strings.Split(m.SQL, upDownSeparator)
	if len(parts) < migrationParts {
		return "", "", fmt.Errorf("migration %s missing %q separator", m.ID, upDownSeparator)
	}

	up = parts[1]
	if idx := strings.Index(up, downMarker); idx != -1 {
		down = up[idx+len(downMarker):]
		up = up[:idx]
	}

	return strings.TrimSpace(up), strings.TrimSpace(down), nil
}
