package schema

import "github.com/go-pg/migrations/v8"

func init() {
	collection.MustRegisterTx(func(db migrations.DB) error {
		_, err := db.Exec(`
			CREATE TABLE IF NOT EXISTS journals (
				filename       TEXT PRIMARY KEY,
				created_at     TIMESTAMPTZ NOT NULL,
				lines_imported BIGINT NOT NULL DEFAULT 0,
				completed      BOOLEAN NOT NULL DEFAULT FALSE,
				updated_at     TIMESTAMPTZ NOT NULL
			)`)
		return err
	}, func(db migrations.DB) error {
		_, err := db.Exec(`DROP TABLE IF EXISTS journals`)
		return err
	})
}
