// Package ingest implements the two ingestion workers: the Tailer follows
// the active journal file and the Backfiller completes historical files.
// They share no in-process state; every write they make is keyed and
// idempotent in the store.
package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/SteelMorgan/journal-ingest/internal/domain"
	"github.com/SteelMorgan/journal-ingest/internal/journal"
)

// FileLocator finds journal files
type FileLocator interface {
	List(ctx context.Context) ([]journal.File, error)
	Latest(ctx context.Context) (*journal.File, error)
	NewCandidate(ctx context.Context, current, last string) (*journal.File, error)
}

// LineProcessor imports one line. A *MalformedRecordError means the line
// is consumed without a record; any other error leaves it pending.
type LineProcessor interface {
	Process(ctx context.Context, key domain.LineKey, line []byte) error
}

// FileStats counts what happened to the lines of one file
type FileStats struct {
	Imported  uint64 // Lines processed (including malformed ones)
	Malformed uint64 // Lines consumed without an envelope
}

// processLine runs proc on one line and reports whether the line is
// consumed. Malformed lines are logged and consumed.
func processLine(ctx context.Context, logger zerolog.Logger, proc LineProcessor, key domain.LineKey, line []byte, stats *FileStats) (bool, error) {
	err := proc.Process(ctx, key, line)
	switch {
	case err == nil:
		stats.Imported++
		return true, nil
	case domain.IsMalformed(err):
		stats.Imported++
		stats.Malformed++
		logger.Warn().
			Err(err).
			Uint64("line", key.Line).
			Msg("Skipping malformed line")
		return true, nil
	default:
		return false, err
	}
}

// sleep waits for d or until ctx is done; it reports whether ctx is still live
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
