package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/SteelMorgan/journal-ingest/internal/domain"
	"github.com/SteelMorgan/journal-ingest/internal/journal"
	"github.com/SteelMorgan/journal-ingest/internal/parser"
	"github.com/SteelMorgan/journal-ingest/internal/store"
)

// recordingProcessor records successfully processed lines in order
type recordingProcessor struct {
	mu   sync.Mutex
	keys []domain.LineKey
	fail map[domain.LineKey]int // Remaining store failures per line
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{fail: make(map[domain.LineKey]int)}
}

func (p *recordingProcessor) Process(_ context.Context, key domain.LineKey, line []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail[key] > 0 {
		p.fail[key]--
		return &domain.SinkConnectionError{Op: "test", Err: errors.New("store unavailable")}
	}
	if _, err := parser.Parse(line); err != nil {
		return err
	}
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingProcessor) setFailures(key domain.LineKey, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[key] = n
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

func (p *recordingProcessor) processed() []domain.LineKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.LineKey(nil), p.keys...)
}

func jsonLine(n int) string {
	return fmt.Sprintf(`{"timestamp":"2021-03-15T18:30:40Z","event":"Music","n":%d}`, n)
}

func jsonLines(from, to int) string {
	var s string
	for i := from; i <= to; i++ {
		s += jsonLine(i) + "\n"
	}
	return s
}

func writeFile(t *testing.T, dir, name, content string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
	return path
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append %s: %v", path, err)
	}
}

func newTestStore(t *testing.T) *store.BoltStore {
	t.Helper()
	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestLocator(t *testing.T, dir string) *journal.Locator {
	t.Helper()
	l, err := journal.NewLocator(dir, "")
	if err != nil {
		t.Fatalf("NewLocator() error = %v", err)
	}
	return l
}

func progressOf(t *testing.T, s store.Ledger, filename string) (domain.Progress, bool) {
	t.Helper()
	all, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, p := range all {
		if p.Filename == filename {
			return p, true
		}
	}
	return domain.Progress{}, false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func assertKeys(t *testing.T, got []domain.LineKey, want ...domain.LineKey) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d processed lines %v, got %d %v", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("processed[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func keys(filename string, from, to uint64) []domain.LineKey {
	var out []domain.LineKey
	for i := from; i <= to; i++ {
		out = append(out, domain.LineKey{Filename: filename, Line: i})
	}
	return out
}
