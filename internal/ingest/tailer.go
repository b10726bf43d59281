package ingest

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/SteelMorgan/journal-ingest/internal/domain"
	"github.com/SteelMorgan/journal-ingest/internal/journal"
	"github.com/SteelMorgan/journal-ingest/internal/store"
)

// TailState is the state of the Tailer state machine
type TailState int32

const (
	StateNoFile TailState = iota
	StateTailing
	StateStopped
)

func (s TailState) String() string {
	switch s {
	case StateNoFile:
		return "no_file"
	case StateTailing:
		return "tailing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// activeFile tracks which file is tailed. last is remembered so that
// timestamp jitter cannot switch back to a file that was already finalized.
type activeFile struct {
	current   string
	last      string
	candidate *journal.File
}

// Tailer follows the most recently written journal file and imports each
// line as soon as it is terminated
type Tailer struct {
	locator FileLocator
	ledger  store.Ledger
	proc    LineProcessor
	poll    time.Duration

	state  atomic.Int32
	active activeFile

	file     *os.File
	reader   *lineReader
	logger   zerolog.Logger
	imported uint64 // Lines already in the ledger when the file was opened
	lines    uint64 // Ordinal of the last consumed line
	pending  []byte // Line that failed with a store error, retried first
	stats    FileStats
}

// NewTailer creates a tailer polling every pollInterval
func NewTailer(locator FileLocator, ledger store.Ledger, proc LineProcessor, pollInterval time.Duration) *Tailer {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Tailer{
		locator: locator,
		ledger:  ledger,
		proc:    proc,
		poll:    pollInterval,
		logger:  log.With().Str("component", "tailer").Logger(),
	}
}

// State returns the current state
func (t *Tailer) State() TailState {
	return TailState(t.state.Load())
}

func (t *Tailer) setState(s TailState) {
	t.state.Store(int32(s))
}

// Run tails until ctx is cancelled. Errors are logged and retried on the
// next poll; Run only returns ctx.Err().
func (t *Tailer) Run(ctx context.Context) error {
	log.Info().
		Dur("poll_interval", t.poll).
		Msg("Tail reader starting")

	defer func() {
		t.closeFile()
		t.setState(StateStopped)
		log.Info().Msg("Tail reader stopped")
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var wait bool
		switch t.State() {
		case StateNoFile:
			wait = !t.open(ctx)
		case StateTailing:
			wait = t.tail(ctx)
		}

		if wait && !sleep(ctx, t.poll) {
			return ctx.Err()
		}
	}
}

// open selects the file to tail and positions after the imported lines.
// It reports whether a file was opened.
func (t *Tailer) open(ctx context.Context) bool {
	f := t.active.candidate
	if f == nil {
		latest, err := t.locator.Latest(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to locate journal file")
			return false
		}
		if latest == nil {
			return false
		}
		f = latest
	}

	imported, err := t.ledger.GetOrCreate(ctx, f.Name, f.CreatedAt)
	if err != nil {
		log.Error().Err(err).Str("file", f.Name).Msg("Failed to read ledger")
		return false
	}

	file, err := os.Open(f.Path)
	if err != nil {
		log.Warn().
			Err(&domain.FileAccessError{Op: "open", Path: f.Path, Err: err}).
			Msg("Failed to open journal file")
		return false
	}

	t.file = file
	t.reader = newLineReader(file)
	t.logger = log.With().Str("component", "tailer").Str("file", f.Name).Logger()
	t.imported = imported
	t.lines = 0
	t.pending = nil
	t.stats = FileStats{}
	t.active.current = f.Name
	t.active.candidate = nil
	t.setState(StateTailing)

	t.logger.Info().
		Uint64("lines_imported", imported).
		Msg("Tailing journal file")
	return true
}

// nextLine returns the pending line first, then lines from the reader
func (t *Tailer) nextLine() ([]byte, bool, error) {
	if t.pending != nil {
		line := t.pending
		t.pending = nil
		return line, true, nil
	}
	return t.reader.Next()
}

// tail imports every complete line and checks for rollover at EOF.
// It reports whether the caller should wait one poll interval.
// Cancellation is checked between lines only: a line that has started is
// finished, rows and ledger included.
func (t *Tailer) tail(ctx context.Context) bool {
	lineCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			return false
		}

		line, ok, err := t.nextLine()
		if err != nil {
			t.logger.Warn().
				Err(&domain.FileAccessError{Op: "read", Path: t.file.Name(), Err: err}).
				Msg("Failed to read journal file, reopening")
			t.reset()
			return true
		}
		if !ok {
			break
		}

		if !t.consume(lineCtx, line) {
			return true
		}
	}

	cand, err := t.locator.NewCandidate(ctx, t.active.current, t.active.last)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Failed to look for a newer journal file")
		return true
	}
	if cand == nil {
		return true
	}

	t.logger.Info().
		Str("next_file", cand.Name).
		Msg("Newer journal file found, finalizing")

	// The writer has moved on, an unterminated tail is the final line
	if line, ok := t.reader.Flush(); ok {
		if !t.consume(lineCtx, line) {
			return true
		}
	}

	if err := t.ledger.Update(lineCtx, t.active.current, t.lines, true); err != nil {
		t.logger.Error().Err(err).Msg("Failed to mark journal file completed")
		return true
	}

	t.logger.Info().
		Uint64("lines", t.lines).
		Uint64("imported", t.stats.Imported).
		Uint64("malformed", t.stats.Malformed).
		Msg("Journal file completed")

	t.closeFile()
	t.active.last = t.active.current
	t.active.current = ""
	t.active.candidate = cand
	t.setState(StateNoFile)
	return false
}

// consume processes one line with the next ordinal. It reports whether
// the line was consumed; an unconsumed line is kept pending.
func (t *Tailer) consume(ctx context.Context, line []byte) bool {
	ordinal := t.lines + 1
	if ordinal <= t.imported {
		t.lines = ordinal
		return true
	}

	key := domain.LineKey{Filename: t.active.current, Line: ordinal}
	ok, err := processLine(ctx, t.logger, t.proc, key, line, &t.stats)
	if !ok {
		t.logger.Error().
			Err(err).
			Uint64("line", ordinal).
			Msg("Failed to import line, will retry")
		t.pending = line
		return false
	}
	t.lines = ordinal

	if err := t.ledger.Update(ctx, t.active.current, ordinal, false); err != nil {
		// The line is imported; the next successful update covers it
		t.logger.Error().Err(err).Uint64("line", ordinal).Msg("Failed to update ledger")
	}
	return true
}

// reset drops the open file so the next iteration reopens it from the ledger
func (t *Tailer) reset() {
	t.closeFile()
	t.active.candidate = nil
	t.active.current = ""
	t.setState(StateNoFile)
}

func (t *Tailer) closeFile() {
	if t.file == nil {
		return
	}
	if err := t.file.Close(); err != nil {
		t.logger.Warn().Err(err).Msg("Failed to close journal file")
	}
	t.file = nil
	t.reader = nil
}
