package ingest

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/SteelMorgan/journal-ingest/internal/domain"
	"github.com/SteelMorgan/journal-ingest/internal/journal"
	"github.com/SteelMorgan/journal-ingest/internal/observability"
	"github.com/SteelMorgan/journal-ingest/internal/store"
)

const tracerName = "journal-ingest/ingest"

// PassResult summarizes one backfill pass
type PassResult struct {
	Files     int // Files imported to completion
	Skipped   int // Files already completed
	Failed    int // Files aborted by a store error
	Lines     uint64
	Malformed uint64
}

// Backfiller imports historical journal files to completion. The most
// recently created file is left to the Tailer.
type Backfiller struct {
	locator  FileLocator
	ledger   store.Ledger
	proc     LineProcessor
	interval time.Duration
}

// NewBackfiller creates a backfiller running one pass every interval
func NewBackfiller(locator FileLocator, ledger store.Ledger, proc LineProcessor, interval time.Duration) *Backfiller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Backfiller{
		locator:  locator,
		ledger:   ledger,
		proc:     proc,
		interval: interval,
	}
}

// Run performs a pass immediately and then every interval until ctx is
// cancelled. It only returns ctx.Err().
func (b *Backfiller) Run(ctx context.Context) error {
	log.Info().
		Dur("interval", b.interval).
		Msg("Backfill scanner starting")
	defer log.Info().Msg("Backfill scanner stopped")

	for {
		res, err := b.Pass(ctx)
		if err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("Backfill pass failed")
		} else if res.Files > 0 || res.Failed > 0 {
			log.Info().
				Int("files", res.Files).
				Int("failed", res.Failed).
				Uint64("lines", res.Lines).
				Uint64("malformed", res.Malformed).
				Msg("Backfill pass complete")
		}

		if !sleep(ctx, b.interval) {
			return ctx.Err()
		}
	}
}

// Pass imports every incomplete historical file, oldest first. Cancellation
// is checked between files only: a file in progress is finished.
func (b *Backfiller) Pass(ctx context.Context) (PassResult, error) {
	var res PassResult

	files, err := b.locator.List(ctx)
	if err != nil {
		return res, err
	}
	if len(files) <= 1 {
		return res, nil
	}
	// List is ordered by creation; the newest file belongs to the Tailer
	files = files[:len(files)-1]

	progress, err := b.ledger.List(ctx)
	if err != nil {
		return res, err
	}
	completed := make(map[string]bool, len(progress))
	for _, p := range progress {
		completed[p.Filename] = p.Completed
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if completed[f.Name] {
			res.Skipped++
			continue
		}

		stats, err := b.importFile(context.WithoutCancel(ctx), f)
		res.Lines += stats.Imported
		res.Malformed += stats.Malformed
		if err != nil {
			res.Failed++
			log.Error().
				Err(err).
				Str("file", f.Name).
				Msg("Backfill of journal file aborted")
			continue
		}
		res.Files++
	}

	return res, nil
}

// importFile imports f from the first line not yet in the ledger and marks
// it completed at EOF. A store error aborts the file without completing it.
func (b *Backfiller) importFile(ctx context.Context, f journal.File) (stats FileStats, err error) {
	ctx, span := observability.StartSpan(ctx, tracerName, "ingest.backfill_file",
		attribute.String("journal.file", f.Name),
	)
	defer func() {
		span.SetAttributes(
			attribute.Int64("journal.lines_imported", int64(stats.Imported)),
			attribute.Int64("journal.lines_malformed", int64(stats.Malformed)),
		)
		observability.EndSpan(span, err, "backfill file")
	}()

	logger := log.With().Str("component", "backfill").Str("file", f.Name).Logger()

	imported, err := b.ledger.GetOrCreate(ctx, f.Name, f.CreatedAt)
	if err != nil {
		return stats, err
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return stats, &domain.FileAccessError{Op: "open", Path: f.Path, Err: err}
	}
	defer file.Close()

	logger.Info().
		Uint64("lines_imported", imported).
		Msg("Backfilling journal file")

	reader := newLineReader(file)
	var ordinal uint64

	importLine := func(line []byte) error {
		ordinal++
		if ordinal <= imported {
			return nil
		}
		key := domain.LineKey{Filename: f.Name, Line: ordinal}
		if ok, err := processLine(ctx, logger, b.proc, key, line, &stats); !ok {
			return fmt.Errorf("line %d: %w", ordinal, err)
		}
		return b.ledger.Update(ctx, f.Name, ordinal, false)
	}

	for {
		line, ok, err := reader.Next()
		if err != nil {
			return stats, &domain.FileAccessError{Op: "read", Path: f.Path, Err: err}
		}
		if !ok {
			break
		}
		if err := importLine(line); err != nil {
			return stats, err
		}
	}

	// An unterminated final line still counts as a line
	if line, ok := reader.Flush(); ok {
		if err := importLine(line); err != nil {
			return stats, err
		}
	}

	if err := b.ledger.Update(ctx, f.Name, ordinal, true); err != nil {
		return stats, err
	}

	logger.Info().
		Uint64("lines", ordinal).
		Uint64("imported", stats.Imported).
		Uint64("malformed", stats.Malformed).
		Msg("Journal file completed")

	return stats, nil
}
