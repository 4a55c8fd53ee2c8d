package eventstore

import (
	_ "embed"

	"github.com/goran-ethernal/ChainIndexor/internal/db"
)

//go:embed 001_event_store_schema_1.sql
var mig001 string

// RunMigrations applies the event store's schema to the database at dbPath.
func RunMigrations(dbPath string) error {
	migrations := []db.Migration{
		{
			ID:  "001_event_store_schema_1.sql",
			SQL: mig001,
		},
	}

	return db.RunMigrations(dbPath, migrations)
}
