package writer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/SteelMorgan/journal-ingest/internal/clickhouse"
	"github.com/SteelMorgan/journal-ingest/internal/domain"
)

// ClickHouse DateTime64 valid range: 1925-01-01 to 2283-11-11
var (
	minClickHouseDateTime = time.Date(1925, 1, 1, 0, 0, 0, 0, time.UTC)
	maxClickHouseDateTime = time.Date(2283, 11, 11, 23, 59, 59, 999999999, time.UTC)
)

// ensureValidDateTime ensures the time value is within ClickHouse DateTime64 range
// Returns the input time if valid, or minClickHouseDateTime if out of range or zero
func ensureValidDateTime(t time.Time) time.Time {
	if t.IsZero() || t.Before(minClickHouseDateTime) || t.After(maxClickHouseDateTime) {
		return minClickHouseDateTime
	}
	return t
}

// ProgressTable is the table ledger updates are mirrored into
const ProgressTable = "journal_progress"

// Config configures the ClickHouse writer
type Config struct {
	// EnableDeduplication checks (envelope_id, idx) before each insert.
	// ReplacingMergeTree collapses duplicates eventually either way.
	EnableDeduplication bool
}

// ClickHouseWriter writes handler rows to ClickHouse, one insert per row
type ClickHouseWriter struct {
	client *clickhouse.Client
	cfg    Config

	mu     sync.RWMutex
	tables map[string]Table
}

// NewClickHouseWriter creates a writer on top of an open client
func NewClickHouseWriter(client *clickhouse.Client, cfg Config) *ClickHouseWriter {
	return &ClickHouseWriter{
		client: client,
		cfg:    cfg,
		tables: make(map[string]Table),
	}
}

// EnsureTables implements Writer. It also creates the progress table.
func (w *ClickHouseWriter) EnsureTables(ctx context.Context, tables []Table) error {
	if err := w.client.EnsureDatabase(ctx); err != nil {
		return &domain.SinkConnectionError{Op: "create database", Err: err}
	}

	if err := w.client.Exec(ctx, createProgressTableQuery(w.client.Database())); err != nil {
		return &domain.SinkConnectionError{Op: "create table " + ProgressTable, Err: err}
	}

	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return err
		}
		if err := w.client.Exec(ctx, createTableQuery(w.client.Database(), t)); err != nil {
			return &domain.SinkConnectionError{Op: "create table " + t.Name, Err: err}
		}

		w.mu.Lock()
		w.tables[t.Name] = t
		w.mu.Unlock()
	}

	log.Info().
		Str("database", w.client.Database()).
		Int("tables", len(tables)).
		Msg("ClickHouse schema ensured")

	return nil
}

// WriteRow implements Writer
func (w *ClickHouseWriter) WriteRow(ctx context.Context, row *Row) error {
	w.mu.RLock()
	t, ok := w.tables[row.Table]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("table %s is not registered", row.Table)
	}

	values, err := rowValues(t, row)
	if err != nil {
		return err
	}

	if w.cfg.EnableDeduplication {
		exists, err := w.rowExists(ctx, t.Name, row)
		if err != nil {
			// Dedup is best-effort, the insert below is still safe
			log.Warn().
				Err(err).
				Str("table", t.Name).
				Str("envelope_id", row.EnvelopeID.String()).
				Msg("Failed to check for existing row, inserting anyway")
		} else if exists {
			log.Debug().
				Str("table", t.Name).
				Str("envelope_id", row.EnvelopeID.String()).
				Uint32("idx", row.Index).
				Msg("Row already exists, skipping")
			return nil
		}
	}

	if err := w.client.Insert(ctx, insertQuery(w.client.Database(), t), values...); err != nil {
		return &domain.SinkConnectionError{Op: "insert into " + t.Name, Err: err}
	}

	log.Debug().
		Str("table", t.Name).
		Str("envelope_id", row.EnvelopeID.String()).
		Uint32("idx", row.Index).
		Msg("Row written to ClickHouse")

	return nil
}

// WriteProgress mirrors a ledger update into the progress table
func (w *ClickHouseWriter) WriteProgress(ctx context.Context, p domain.Progress) error {
	query := fmt.Sprintf(
		"INSERT INTO %s.%s (filename, lines_imported, completed, updated_at)",
		w.client.Database(), ProgressTable)

	err := w.client.Insert(ctx, query,
		p.Filename,
		p.LinesImported,
		p.Completed,
		ensureValidDateTime(p.UpdatedAt),
	)
	if err != nil {
		return &domain.SinkConnectionError{Op: "insert into " + ProgressTable, Err: err}
	}
	return nil
}

// Close closes the underlying client
func (w *ClickHouseWriter) Close() error {
	return w.client.Close()
}

func (w *ClickHouseWriter) rowExists(ctx context.Context, table string, row *Row) (bool, error) {
	query := fmt.Sprintf("SELECT count() FROM %s.%s WHERE %s = toUUID(?) AND %s = ?",
		w.client.Database(), table, ColumnEnvelopeID, ColumnIndex)

	count, err := w.client.Count(ctx, query, row.EnvelopeID.String(), row.Index)
	if err != nil {
		return false, fmt.Errorf("failed to check row: %w", err)
	}
	return count > 0, nil
}

// rowValues lays out row values in table column order, filling unset
// columns with their zero value
func rowValues(t Table, row *Row) ([]interface{}, error) {
	known := make(map[string]bool, len(t.Columns))
	values := make([]interface{}, 0, len(t.Columns)+3)
	values = append(values, row.EnvelopeID, ensureValidDateTime(row.Timestamp), row.Index)

	for _, col := range t.Columns {
		known[col.Name] = true
		v, ok := row.Values[col.Name]
		if !ok || v == nil {
			v = col.Zero()
		}
		if !col.Accepts(v) {
			return nil, fmt.Errorf("table %s: column %s (%s) cannot hold %T", t.Name, col.Name, col.Type, v)
		}
		if col.Type == TypeDateTime {
			if ts, isTime := v.(time.Time); isTime {
				v = ensureValidDateTime(ts)
			}
		}
		values = append(values, v)
	}

	var unknown []string
	for name := range row.Values {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("table %s has no columns %s", t.Name, strings.Join(unknown, ", "))
	}

	return values, nil
}

func createTableQuery(database string, t Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s.%s (\n", database, t.Name)
	fmt.Fprintf(&b, "    %s UUID,\n", ColumnEnvelopeID)
	fmt.Fprintf(&b, "    %s %s,\n", ColumnTimestamp, TypeDateTime)
	fmt.Fprintf(&b, "    %s UInt32", ColumnIndex)
	for _, col := range t.Columns {
		fmt.Fprintf(&b, ",\n    %s %s", col.Name, col.Type)
	}
	b.WriteString("\n) ENGINE = ReplacingMergeTree\n")
	fmt.Fprintf(&b, "PARTITION BY toYYYYMM(%s)\n", ColumnTimestamp)
	fmt.Fprintf(&b, "ORDER BY (%s, %s)", ColumnEnvelopeID, ColumnIndex)
	return b.String()
}

func createProgressTableQuery(database string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    filename String,
    lines_imported UInt64,
    completed Bool,
    updated_at %s
) ENGINE = ReplacingMergeTree(updated_at)
ORDER BY filename`, database, ProgressTable, TypeDateTime)
}

func insertQuery(database string, t Table) string {
	names := make([]string, 0, len(t.Columns)+3)
	names = append(names, ColumnEnvelopeID, ColumnTimestamp, ColumnIndex)
	for _, col := range t.Columns {
		names = append(names, col.Name)
	}
	return fmt.Sprintf("INSERT INTO %s.%s (%s)", database, t.Name, strings.Join(names, ", "))
}
