// Package store persists the progress ledger and the generic event envelopes.
//
// Every operation is keyed (by filename, or by filename and line) and
// idempotent, which is what lets the tail and backfill workers run without
// in-process coordination.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/SteelMorgan/journal-ingest/internal/domain"
)

// Ledger tracks per-file import progress
type Ledger interface {
	// GetOrCreate inserts a fresh record (0 lines, not completed) if the file
	// is unknown, then returns the number of lines already imported
	GetOrCreate(ctx context.Context, filename string, createdAt time.Time) (uint64, error)

	// Update persists progress. The stored line count never decreases and a
	// completed file stays completed. On error the stored value is unchanged.
	Update(ctx context.Context, filename string, linesImported uint64, completed bool) error

	// Get returns the stored record for filename and whether it exists
	Get(ctx context.Context, filename string) (domain.Progress, bool, error)

	// List returns every ledger record
	List(ctx context.Context) ([]domain.Progress, error)
}

// Envelopes stores one generic record per journal line
type Envelopes interface {
	// EnsureEnvelope creates the envelope if no envelope exists for its key.
	// It returns the stored envelope and whether it was created by this call.
	EnsureEnvelope(ctx context.Context, env *domain.Envelope) (*domain.Envelope, bool, error)

	// MarkParsed flags the envelope as processed by handlers
	MarkParsed(ctx context.Context, id uuid.UUID) error

	// GetEnvelope returns the envelope stored for key, or nil
	GetEnvelope(ctx context.Context, key domain.LineKey) (*domain.Envelope, error)

	// ListEnvelopes returns envelopes of the given types (all types when empty),
	// ordered by filename and line
	ListEnvelopes(ctx context.Context, types []string) ([]*domain.Envelope, error)
}

// Store is a ledger and envelope store backed by the same database
type Store interface {
	Ledger
	Envelopes
	Close() error
}

func sinkError(op string, err error) error {
	return &domain.SinkConnectionError{Op: op, Err: err}
}
