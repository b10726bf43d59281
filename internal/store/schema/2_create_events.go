package schema

import "github.com/go-pg/migrations/v8"

func init() {
	collection.MustRegisterTx(func(db migrations.DB) error {
		_, err := db.Exec(`
			CREATE TABLE IF NOT EXISTS events (
				id              UUID PRIMARY KEY,
				filename        TEXT NOT NULL,
				line            BIGINT NOT NULL,
				event_timestamp TIMESTAMPTZ NOT NULL,
				type            TEXT NOT NULL,
				raw             BYTEA NOT NULL,
				parsed          BOOLEAN NOT NULL DEFAULT FALSE,
				CONSTRAINT events_filename_line_key UNIQUE (filename, line)
			)`)
		if err != nil {
			return err
		}
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS events_type_idx ON events (type)`)
		return err
	}, func(db migrations.DB) error {
		_, err := db.Exec(`DROP TABLE IF EXISTS events`)
		return err
	})
}
