package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/SteelMorgan/journal-ingest/internal/domain"
	"github.com/SteelMorgan/journal-ingest/internal/retry"
	"github.com/SteelMorgan/journal-ingest/internal/store/schema"
)

// PostgresOptions configures the Postgres store connection
type PostgresOptions struct {
	URL      string // postgres:// DSN; overrides the fields below when set
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Timeout  time.Duration
	Retry    retry.Config
}

type journalRow struct {
	tableName struct{} `pg:"journals"`

	Filename      string    `pg:",pk"`
	CreatedAt     time.Time `pg:",notnull"`
	LinesImported int64     `pg:",use_zero"`
	Completed     bool      `pg:",use_zero"`
	UpdatedAt     time.Time `pg:",notnull"`
}

type eventRow struct {
	tableName struct{} `pg:"events"`

	ID        string    `pg:",pk,type:uuid"`
	Filename  string    `pg:",notnull"`
	Line      int64     `pg:",use_zero"`
	Timestamp time.Time `pg:"event_timestamp,notnull"`
	Type      string    `pg:",notnull"`
	Raw       []byte    `pg:",notnull"`
	Parsed    bool      `pg:",use_zero"`
}

func (r *journalRow) progress() domain.Progress {
	return domain.Progress{
		Filename:      r.Filename,
		CreatedAt:     r.CreatedAt.UTC(),
		LinesImported: uint64(r.LinesImported),
		Completed:     r.Completed,
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func (r *eventRow) envelope() (*domain.Envelope, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", r.ID, err)
	}
	return &domain.Envelope{
		ID:        id,
		Filename:  r.Filename,
		Line:      uint64(r.Line),
		Timestamp: r.Timestamp.UTC(),
		Type:      r.Type,
		Raw:       r.Raw,
		Parsed:    r.Parsed,
	}, nil
}

// PostgresStore implements Store on Postgres. Uniqueness of (filename) and
// (filename, line) is enforced by the schema, so concurrent workers and
// multiple processes can share one database.
type PostgresStore struct {
	db       *pg.DB
	retryCfg retry.Config
}

// NewPostgresStore connects to Postgres and applies pending migrations
func NewPostgresStore(ctx context.Context, opts PostgresOptions) (*PostgresStore, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	pgOpts := &pg.Options{
		Addr:     fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		User:     opts.User,
		Password: opts.Password,
		Database: opts.Database,
	}
	if opts.URL != "" {
		parsed, err := pg.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid postgres url: %w", err)
		}
		pgOpts = parsed
	}
	pgOpts.ApplicationName = "journal-ingest"
	pgOpts.DialTimeout = timeout
	pgOpts.ReadTimeout = timeout
	pgOpts.WriteTimeout = timeout

	db := pg.Connect(pgOpts)

	s := &PostgresStore{db: db, retryCfg: opts.Retry.Normalize()}

	err := retry.Do(ctx, s.retryCfg, func() error {
		return db.Ping(ctx)
	})
	if err != nil {
		db.Close()
		return nil, sinkError("postgres connect", err)
	}

	if err := schema.Apply(db); err != nil {
		db.Close()
		return nil, sinkError("postgres migrate", err)
	}

	log.Info().
		Str("addr", pgOpts.Addr).
		Str("database", pgOpts.Database).
		Msg("Postgres store initialized")

	return s, nil
}

// GetOrCreate implements Ledger
func (s *PostgresStore) GetOrCreate(ctx context.Context, filename string, createdAt time.Time) (uint64, error) {
	row, err := retry.DoWithResult(ctx, s.retryCfg, func() (*journalRow, error) {
		now := time.Now().UTC()
		_, err := s.db.ModelContext(ctx, &journalRow{
			Filename:  filename,
			CreatedAt: createdAt.UTC(),
			UpdatedAt: now,
		}).OnConflict("(filename) DO NOTHING").Insert()
		if err != nil {
			return nil, err
		}

		stored := &journalRow{}
		err = s.db.ModelContext(ctx, stored).
			Where("filename = ?", filename).
			Select()
		return stored, err
	})
	if err != nil {
		return 0, sinkError("ledger get-or-create", err)
	}
	return uint64(row.LinesImported), nil
}

const upsertProgressQuery = `
INSERT INTO journals (filename, created_at, lines_imported, completed, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (filename) DO UPDATE SET
	lines_imported = GREATEST(journals.lines_imported, EXCLUDED.lines_imported),
	completed      = journals.completed OR EXCLUDED.completed,
	updated_at     = EXCLUDED.updated_at`

// Update implements Ledger
func (s *PostgresStore) Update(ctx context.Context, filename string, linesImported uint64, completed bool) error {
	err := retry.Do(ctx, s.retryCfg, func() error {
		now := time.Now().UTC()
		// created_at is only used when the file was never registered
		_, err := s.db.ExecContext(ctx, upsertProgressQuery,
			filename, now, int64(linesImported), completed, now)
		return err
	})
	if err != nil {
		return sinkError("ledger update", err)
	}

	log.Debug().
		Str("file", filename).
		Uint64("lines_imported", linesImported).
		Bool("completed", completed).
		Msg("Ledger updated")
	return nil
}

// Get implements Ledger
func (s *PostgresStore) Get(ctx context.Context, filename string) (domain.Progress, bool, error) {
	row, err := retry.DoWithResult(ctx, s.retryCfg, func() (*journalRow, error) {
		stored := &journalRow{}
		err := s.db.ModelContext(ctx, stored).
			Where("filename = ?", filename).
			Select()
		if errors.Is(err, pg.ErrNoRows) {
			return nil, nil
		}
		return stored, err
	})
	if err != nil {
		return domain.Progress{}, false, sinkError("ledger get", err)
	}
	if row == nil {
		return domain.Progress{}, false, nil
	}
	return row.progress(), true, nil
}

// List implements Ledger
func (s *PostgresStore) List(ctx context.Context) ([]domain.Progress, error) {
	var rows []journalRow
	err := retry.Do(ctx, s.retryCfg, func() error {
		rows = rows[:0]
		return s.db.ModelContext(ctx, &rows).
			Order("created_at ASC", "filename ASC").
			Select()
	})
	if err != nil {
		return nil, sinkError("ledger list", err)
	}

	result := make([]domain.Progress, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].progress())
	}
	return result, nil
}

// EnsureEnvelope implements Envelopes
func (s *PostgresStore) EnsureEnvelope(ctx context.Context, env *domain.Envelope) (*domain.Envelope, bool, error) {
	id := env.ID
	if id == uuid.Nil {
		id = domain.EnvelopeID(env.Key())
	}

	type result struct {
		env     *domain.Envelope
		created bool
	}

	res, err := retry.DoWithResult(ctx, s.retryCfg, func() (result, error) {
		row := &eventRow{
			ID:        id.String(),
			Filename:  env.Filename,
			Line:      int64(env.Line),
			Timestamp: env.Timestamp.UTC(),
			Type:      env.Type,
			Raw:       env.Raw,
		}
		inserted, err := s.db.ModelContext(ctx, row).
			OnConflict("DO NOTHING").
			Insert()
		if err != nil {
			return result{}, err
		}
		if inserted.RowsAffected() > 0 {
			fresh, err := row.envelope()
			return result{env: fresh, created: true}, err
		}

		stored := &eventRow{}
		err = s.db.ModelContext(ctx, stored).
			Where("filename = ?", env.Filename).
			Where("line = ?", int64(env.Line)).
			Select()
		if err != nil {
			return result{}, err
		}
		existing, err := stored.envelope()
		return result{env: existing}, err
	})
	if err != nil {
		return nil, false, sinkError("envelope ensure", err)
	}
	return res.env, res.created, nil
}

// MarkParsed implements Envelopes
func (s *PostgresStore) MarkParsed(ctx context.Context, id uuid.UUID) error {
	err := retry.Do(ctx, s.retryCfg, func() error {
		res, err := s.db.ModelContext(ctx, (*eventRow)(nil)).
			Set("parsed = TRUE").
			Where("id = ?", id.String()).
			Update()
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return retry.Permanent(fmt.Errorf("envelope %s not found", id))
		}
		return nil
	})
	if err != nil {
		return sinkError("envelope mark parsed", err)
	}
	return nil
}

// GetEnvelope implements Envelopes
func (s *PostgresStore) GetEnvelope(ctx context.Context, key domain.LineKey) (*domain.Envelope, error) {
	row, err := retry.DoWithResult(ctx, s.retryCfg, func() (*eventRow, error) {
		stored := &eventRow{}
		err := s.db.ModelContext(ctx, stored).
			Where("filename = ?", key.Filename).
			Where("line = ?", int64(key.Line)).
			Select()
		if errors.Is(err, pg.ErrNoRows) {
			return nil, nil
		}
		return stored, err
	})
	if err != nil {
		return nil, sinkError("envelope get", err)
	}
	if row == nil {
		return nil, nil
	}

	env, err := row.envelope()
	if err != nil {
		return nil, sinkError("envelope get", err)
	}
	return env, nil
}

// ListEnvelopes implements Envelopes
func (s *PostgresStore) ListEnvelopes(ctx context.Context, types []string) ([]*domain.Envelope, error) {
	var rows []eventRow
	err := retry.Do(ctx, s.retryCfg, func() error {
		rows = rows[:0]
		q := s.db.ModelContext(ctx, &rows).Order("filename ASC", "line ASC")
		if len(types) > 0 {
			q = q.WhereIn("type IN (?)", types)
		}
		return q.Select()
	})
	if err != nil {
		return nil, sinkError("envelope list", err)
	}

	result := make([]*domain.Envelope, 0, len(rows))
	for i := range rows {
		env, err := rows[i].envelope()
		if err != nil {
			return nil, sinkError("envelope list", err)
		}
		result = append(result, env)
	}
	return result, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	log.Info().Msg("Closing Postgres store")
	return s.db.Close()
}
