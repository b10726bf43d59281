package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/SteelMorgan/journal-ingest/internal/domain"
	"github.com/SteelMorgan/journal-ingest/internal/store"
	"github.com/SteelMorgan/journal-ingest/internal/writer"
)

// bountyHandler emits one row per reward, numbered from 1, after a
// summary row with idx 0
type bountyHandler struct{}

func (bountyHandler) Type() string { return "Bounty" }

func (bountyHandler) Tables() []writer.Table {
	return []writer.Table{
		{Name: "bounty", Columns: []writer.Column{{Name: "target", Type: writer.TypeString}}},
		{Name: "bounty_rewards", Columns: []writer.Column{{Name: "faction", Type: writer.TypeString}}},
	}
}

func (bountyHandler) Rows(id uuid.UUID, ev *domain.Event) ([]*writer.Row, error) {
	var payload struct {
		Target  string `json:"Target"`
		Rewards []struct {
			Faction string `json:"Faction"`
		} `json:"Rewards"`
	}
	if err := json.Unmarshal(ev.Raw, &payload); err != nil {
		return nil, err
	}

	rows := []*writer.Row{writer.NewRow("bounty", id, ev.Timestamp, 0).Set("target", payload.Target)}
	for i, r := range payload.Rewards {
		rows = append(rows, writer.NewRow("bounty_rewards", id, ev.Timestamp, uint32(i+1)).Set("faction", r.Faction))
	}
	return rows, nil
}

type fakeWriter struct {
	mu       sync.Mutex
	rows     []*writer.Row
	failures map[string]int // table → remaining failures
}

func (w *fakeWriter) EnsureTables(context.Context, []writer.Table) error { return nil }

func (w *fakeWriter) WriteRow(_ context.Context, row *writer.Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failures[row.Table] > 0 {
		w.failures[row.Table]--
		return errors.New("sink rejected row")
	}
	w.rows = append(w.rows, row)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.rows)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *store.BoltStore, *fakeWriter) {
	t.Helper()
	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	registry := NewRegistry()
	if err := registry.Register(bountyHandler{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	w := &fakeWriter{failures: make(map[string]int)}
	return New(s, registry, w), s, w
}

const bountyLine = `{"timestamp":"2021-03-15T18:30:40Z","event":"Bounty","Target":"viper",` +
	`"Rewards":[{"Faction":"Alpha"},{"Faction":"Beta"}]}`

func TestDispatcher_Process(t *testing.T) {
	d, s, w := newTestDispatcher(t)
	ctx := context.Background()
	key := domain.LineKey{Filename: "Journal.001.log", Line: 1}

	if err := d.Process(ctx, key, []byte(bountyLine)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if w.count() != 3 {
		t.Errorf("expected 3 rows, got %d", w.count())
	}

	env, err := s.GetEnvelope(ctx, key)
	if err != nil {
		t.Fatalf("GetEnvelope() error = %v", err)
	}
	if env == nil || !env.Parsed || env.Type != "Bounty" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.ID != domain.EnvelopeID(key) {
		t.Errorf("expected deterministic id %s, got %s", domain.EnvelopeID(key), env.ID)
	}
}

func TestDispatcher_ProcessTwiceWritesOnce(t *testing.T) {
	d, s, w := newTestDispatcher(t)
	ctx := context.Background()
	key := domain.LineKey{Filename: "Journal.001.log", Line: 1}

	for i := 0; i < 2; i++ {
		if err := d.Process(ctx, key, []byte(bountyLine)); err != nil {
			t.Fatalf("Process() #%d error = %v", i, err)
		}
	}

	if w.count() != 3 {
		t.Errorf("expected rows from a single dispatch, got %d", w.count())
	}

	all, err := s.ListEnvelopes(ctx, nil)
	if err != nil {
		t.Fatalf("ListEnvelopes() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 envelope, got %d", len(all))
	}
}

func TestDispatcher_ProcessMalformed(t *testing.T) {
	d, s, w := newTestDispatcher(t)
	ctx := context.Background()

	lines := []string{
		"",
		"not json",
		`{"event":"Bounty"}`,
		`{"timestamp":"2021-03-15T18:30:40Z"}`,
	}

	for i, line := range lines {
		key := domain.LineKey{Filename: "Journal.001.log", Line: uint64(i + 1)}
		err := d.Process(ctx, key, []byte(line))
		if !domain.IsMalformed(err) {
			t.Errorf("line %q: expected MalformedRecordError, got %v", line, err)
		}
	}

	all, err := s.ListEnvelopes(ctx, nil)
	if err != nil {
		t.Fatalf("ListEnvelopes() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected no envelopes, got %d", len(all))
	}
	if w.count() != 0 {
		t.Errorf("expected no rows, got %d", w.count())
	}
}

func TestDispatcher_RowFailureIsIsolated(t *testing.T) {
	d, s, w := newTestDispatcher(t)
	ctx := context.Background()
	key := domain.LineKey{Filename: "Journal.001.log", Line: 1}
	w.failures["bounty"] = 1

	if err := d.Process(ctx, key, []byte(bountyLine)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if w.count() != 2 {
		t.Errorf("expected sibling rows to be written, got %d", w.count())
	}

	env, err := s.GetEnvelope(ctx, key)
	if err != nil {
		t.Fatalf("GetEnvelope() error = %v", err)
	}
	if !env.Parsed {
		t.Error("expected envelope to be marked parsed despite the failure")
	}
}

func TestDispatcher_UnknownType(t *testing.T) {
	d, s, w := newTestDispatcher(t)
	ctx := context.Background()
	key := domain.LineKey{Filename: "Journal.001.log", Line: 1}

	line := `{"timestamp":"2021-03-15T18:30:40Z","event":"Music","MusicTrack":"NoTrack"}`
	if err := d.Process(ctx, key, []byte(line)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	env, err := s.GetEnvelope(ctx, key)
	if err != nil {
		t.Fatalf("GetEnvelope() error = %v", err)
	}
	if env == nil || !env.Parsed {
		t.Errorf("expected parsed envelope, got %+v", env)
	}
	if w.count() != 0 {
		t.Errorf("expected no rows, got %d", w.count())
	}
}

func TestDispatcher_Reprocess(t *testing.T) {
	d, s, w := newTestDispatcher(t)
	ctx := context.Background()

	lines := []string{
		bountyLine,
		`{"timestamp":"2021-03-15T18:31:00Z","event":"Music","MusicTrack":"NoTrack"}`,
		bountyLine,
	}
	for i, line := range lines {
		key := domain.LineKey{Filename: "Journal.001.log", Line: uint64(i + 1)}
		if err := d.Process(ctx, key, []byte(line)); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}
	before := w.count()

	res, err := d.Reprocess(ctx, []string{"Bounty"})
	if err != nil {
		t.Fatalf("Reprocess() error = %v", err)
	}
	if res.Envelopes != 2 || res.Rows != 6 || res.Failed != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	if w.count()-before != 6 {
		t.Errorf("expected 6 new rows, got %d", w.count()-before)
	}

	all, err := s.ListEnvelopes(ctx, nil)
	if err != nil {
		t.Fatalf("ListEnvelopes() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected reprocess to keep 3 envelopes, got %d", len(all))
	}

	res, err = d.Reprocess(ctx, nil)
	if err != nil || res.Envelopes != 0 {
		t.Errorf("expected empty filter to be a no-op, got %+v, %v", res, err)
	}
}

func TestDispatcher_ReprocessCancelled(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	if err := d.Process(context.Background(), domain.LineKey{Filename: "f", Line: 1}, []byte(bountyLine)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Reprocess(ctx, []string{"Bounty"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// gatedWriter holds the first write until release is closed or the write's
// context is done
type gatedWriter struct {
	fakeWriter
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (w *gatedWriter) WriteRow(ctx context.Context, row *writer.Row) error {
	if w.release != nil {
		w.once.Do(func() { close(w.started) })
		select {
		case <-w.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return w.fakeWriter.WriteRow(ctx, row)
}

func TestDispatcher_ReprocessFinishesEnvelopeOnCancel(t *testing.T) {
	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	registry := NewRegistry()
	if err := registry.Register(bountyHandler{}); err != nil {
		t.Fatal(err)
	}
	w := &gatedWriter{fakeWriter: fakeWriter{failures: make(map[string]int)}}
	d := New(s, registry, w)

	for line := uint64(1); line <= 2; line++ {
		if err := d.Process(context.Background(), domain.LineKey{Filename: "f", Line: line}, []byte(bountyLine)); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}
	before := w.count()

	w.started = make(chan struct{})
	w.release = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	type outcome struct {
		res ReprocessResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := d.Reprocess(ctx, []string{"Bounty"})
		done <- outcome{res, err}
	}()

	<-w.started
	cancel()
	close(w.release)

	out := <-done
	if !errors.Is(out.err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", out.err)
	}
	if out.res.Envelopes != 1 || out.res.Rows != 3 || out.res.Failed != 0 {
		t.Errorf("expected the started envelope to finish, got %+v", out.res)
	}
	if got := w.count() - before; got != 3 {
		t.Errorf("expected 3 rows written, got %d", got)
	}
}
