package writer

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// DiscardWriter validates rows against registered tables and drops them.
// It backs SINK_BACKEND=none, where only envelopes are persisted.
type DiscardWriter struct {
	mu     sync.RWMutex
	tables map[string]Table
}

// NewDiscardWriter creates a writer that persists nothing
func NewDiscardWriter() *DiscardWriter {
	return &DiscardWriter{tables: make(map[string]Table)}
}

// EnsureTables implements Writer
func (w *DiscardWriter) EnsureTables(_ context.Context, tables []Table) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return err
		}
		w.tables[t.Name] = t
	}
	return nil
}

// WriteRow implements Writer
func (w *DiscardWriter) WriteRow(_ context.Context, row *Row) error {
	w.mu.RLock()
	t, ok := w.tables[row.Table]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("table %s is not registered", row.Table)
	}
	if _, err := rowValues(t, row); err != nil {
		return err
	}

	log.Trace().
		Str("table", row.Table).
		Str("envelope_id", row.EnvelopeID.String()).
		Msg("Row discarded")
	return nil
}

// Close implements Writer
func (w *DiscardWriter) Close() error {
	return nil
}
