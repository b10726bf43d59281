package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SteelMorgan/journal-ingest/internal/dispatch"
	"github.com/SteelMorgan/journal-ingest/internal/events"
	"github.com/SteelMorgan/journal-ingest/internal/store"
	"github.com/SteelMorgan/journal-ingest/internal/writer"
)

// slowWriter blocks every write until release is closed or the write's
// context is done, and records whether the envelope was already parsed
type slowWriter struct {
	*writer.DiscardWriter
	store   *store.BoltStore
	started chan struct{}
	release chan struct{}
	once    sync.Once

	mu            sync.Mutex
	written       int
	parsedAtWrite bool
}

func (w *slowWriter) WriteRow(ctx context.Context, row *writer.Row) error {
	w.once.Do(func() { close(w.started) })
	select {
	case <-w.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := w.DiscardWriter.WriteRow(ctx, row); err != nil {
		return err
	}

	envelopes, err := w.store.ListEnvelopes(context.Background(), nil)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.written++
	for _, env := range envelopes {
		if env.ID == row.EnvelopeID && env.Parsed {
			w.parsedAtWrite = true
		}
	}
	return nil
}

func TestTailer_StopFinishesLineInFlight(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t)
	ctx := context.Background()

	registry := dispatch.NewRegistry()
	if err := events.Register(registry); err != nil {
		t.Fatal(err)
	}
	w := &slowWriter{
		DiscardWriter: writer.NewDiscardWriter(),
		store:         s,
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	if err := w.EnsureTables(ctx, registry.Tables()); err != nil {
		t.Fatal(err)
	}
	d := dispatch.New(s, registry, w)

	line := `{"timestamp":"2021-03-15T18:30:40Z","event":"Commander","FID":"F123","Name":"Jameson"}`
	writeFile(t, dir, "Journal.001.log", line+"\n", time.Now())

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- NewTailer(newTestLocator(t, dir), s, d, testPoll).Run(runCtx) }()

	select {
	case <-w.started:
	case <-time.After(5 * time.Second):
		t.Fatal("line was never dispatched")
	}
	cancel()
	close(w.release)

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tailer did not stop")
	}

	w.mu.Lock()
	written, parsedAtWrite := w.written, w.parsedAtWrite
	w.mu.Unlock()
	if written != 1 {
		t.Errorf("expected the in-flight row to be written, got %d rows", written)
	}
	if parsedAtWrite {
		t.Error("envelope was marked parsed before its row was written")
	}

	envelopes, err := s.ListEnvelopes(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(envelopes) != 1 || !envelopes[0].Parsed {
		t.Errorf("expected one parsed envelope, got %+v", envelopes)
	}
	if p, _ := progressOf(t, s, "Journal.001.log"); p.LinesImported != 1 {
		t.Errorf("expected ledger at line 1, got %d", p.LinesImported)
	}
}
