package writer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

var testTable = Table{
	Name: "scan",
	Columns: []Column{
		{Name: "body_name", Type: TypeString},
		{Name: "distance", Type: TypeFloat64},
		{Name: "landable", Type: TypeBool},
	},
}

func TestEnsureValidDateTime(t *testing.T) {
	valid := time.Date(2021, 3, 15, 18, 30, 40, 0, time.UTC)

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"valid", valid, valid},
		{"zero", time.Time{}, minClickHouseDateTime},
		{"too early", time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), minClickHouseDateTime},
		{"too late", time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC), minClickHouseDateTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ensureValidDateTime(tt.in); !got.Equal(tt.want) {
				t.Errorf("ensureValidDateTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTableValidate(t *testing.T) {
	tests := []struct {
		name    string
		table   Table
		wantErr bool
	}{
		{"valid", testTable, false},
		{"empty name", Table{}, true},
		{"reserved column", Table{Name: "t", Columns: []Column{{Name: ColumnIndex, Type: TypeUInt32}}}, true},
		{"duplicate column", Table{Name: "t", Columns: []Column{{Name: "a", Type: TypeString}, {Name: "a", Type: TypeString}}}, true},
		{"unsupported type", Table{Name: "t", Columns: []Column{{Name: "a", Type: "Map(String, String)"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRowValues(t *testing.T) {
	id := uuid.New()
	ts := time.Date(2021, 3, 15, 18, 30, 40, 0, time.UTC)

	row := NewRow("scan", id, ts, 2).
		Set("body_name", "Sol A").
		Set("landable", true)

	values, err := rowValues(testTable, row)
	if err != nil {
		t.Fatalf("rowValues() error = %v", err)
	}

	if len(values) != 6 {
		t.Fatalf("expected 6 values, got %d", len(values))
	}
	if values[0] != id || !values[1].(time.Time).Equal(ts) || values[2] != uint32(2) {
		t.Errorf("unexpected identity values: %v", values[:3])
	}
	if values[3] != "Sol A" {
		t.Errorf("expected body_name Sol A, got %v", values[3])
	}
	if values[4] != float64(0) {
		t.Errorf("expected unset distance to be zero, got %v", values[4])
	}
	if values[5] != true {
		t.Errorf("expected landable true, got %v", values[5])
	}
}

func TestRowValues_UnknownColumn(t *testing.T) {
	row := NewRow("scan", uuid.New(), time.Now(), 0).Set("gravity", 1.2)

	_, err := rowValues(testTable, row)
	if err == nil || !strings.Contains(err.Error(), "gravity") {
		t.Errorf("expected unknown column error, got %v", err)
	}
}

func TestCreateTableQuery(t *testing.T) {
	q := createTableQuery("journal", testTable)

	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS journal.scan",
		"envelope_id UUID",
		"event_timestamp DateTime64(3)",
		"idx UInt32",
		"body_name String",
		"ENGINE = ReplacingMergeTree",
		"ORDER BY (envelope_id, idx)",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q:\n%s", want, q)
		}
	}
}

func TestInsertQuery(t *testing.T) {
	got := insertQuery("journal", testTable)
	want := "INSERT INTO journal.scan (envelope_id, event_timestamp, idx, body_name, distance, landable)"
	if got != want {
		t.Errorf("insertQuery() = %q, want %q", got, want)
	}
}

func TestDiscardWriter(t *testing.T) {
	w := NewDiscardWriter()
	ctx := context.Background()

	row := NewRow("scan", uuid.New(), time.Now(), 0).Set("body_name", "Sol")
	if err := w.WriteRow(ctx, row); err == nil {
		t.Error("expected error for unregistered table")
	}

	if err := w.EnsureTables(ctx, []Table{testTable}); err != nil {
		t.Fatalf("EnsureTables() error = %v", err)
	}
	if err := w.WriteRow(ctx, row); err != nil {
		t.Errorf("WriteRow() error = %v", err)
	}
}

func TestRowValues_TypeMismatch(t *testing.T) {
	row := NewRow("scan", uuid.New(), time.Now(), 0).Set("distance", 12)

	_, err := rowValues(testTable, row)
	if err == nil || !strings.Contains(err.Error(), "distance") {
		t.Errorf("expected type mismatch error, got %v", err)
	}
}
