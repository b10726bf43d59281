package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/SteelMorgan/journal-ingest/internal/domain"
)

// ProgressMirror receives copies of the stored ledger records
type ProgressMirror interface {
	WriteProgress(ctx context.Context, p domain.Progress) error
}

// Mirrored wraps a Store and copies ledger records to a mirror after
// updates. What is mirrored is the record as stored, so the mirror never
// shows a regression the ledger rejected. Per file, the mirror is written
// at most once per interval, and always when the file becomes completed.
// Mirror failures are logged and never fail the update.
type Mirrored struct {
	Store
	mirror   ProgressMirror
	interval time.Duration

	mu   sync.Mutex
	sent map[string]mirrored // filename → last record sent
}

type mirrored struct {
	at        time.Time
	completed bool
}

// NewMirrored returns s with ledger updates mirrored to m. An interval of
// zero mirrors every update.
func NewMirrored(s Store, m ProgressMirror, interval time.Duration) *Mirrored {
	return &Mirrored{
		Store:    s,
		mirror:   m,
		interval: interval,
		sent:     make(map[string]mirrored),
	}
}

// Update implements Ledger
func (m *Mirrored) Update(ctx context.Context, filename string, linesImported uint64, completed bool) error {
	if err := m.Store.Update(ctx, filename, linesImported, completed); err != nil {
		return err
	}
	if !m.due(filename, completed, time.Now()) {
		return nil
	}

	p, ok, err := m.Store.Get(ctx, filename)
	if err == nil && ok {
		err = m.mirror.WriteProgress(ctx, p)
	}
	if err != nil {
		log.Warn().
			Err(err).
			Str("file", filename).
			Msg("Failed to mirror ledger update")
		return nil
	}
	if ok {
		m.mark(filename, p.Completed, time.Now())
	}
	return nil
}

func (m *Mirrored) due(filename string, completed bool, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, ok := m.sent[filename]
	switch {
	case !ok:
		return true
	case completed && !last.completed:
		return true
	default:
		return now.Sub(last.at) >= m.interval
	}
}

func (m *Mirrored) mark(filename string, completed bool, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[filename] = mirrored{at: now, completed: completed}
}
