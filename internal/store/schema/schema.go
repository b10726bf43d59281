// Package schema holds the Postgres migrations of the ledger and envelope
// tables. Migration versions come from the file name prefix.
package schema

import (
	"fmt"

	"github.com/go-pg/migrations/v8"
	"github.com/rs/zerolog/log"
)

var collection = migrations.NewCollection().DisableSQLAutodiscover(true)

// Apply creates the migrations table if needed and runs pending migrations
func Apply(db migrations.DB) error {
	if _, _, err := collection.Run(db, "init"); err != nil {
		return fmt.Errorf("init migrations table: %w", err)
	}

	oldVersion, newVersion, err := collection.Run(db, "up")
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if newVersion != oldVersion {
		log.Info().
			Int64("from", oldVersion).
			Int64("to", newVersion).
			Msg("Postgres schema migrated")
	}
	return nil
}
