package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Columns every handler table starts with. Together (envelope_id, idx)
// identify a row: idx numbers the rows one envelope produces.
const (
	ColumnEnvelopeID = "envelope_id"
	ColumnTimestamp  = "event_timestamp"
	ColumnIndex      = "idx"
)

// Supported column types
const (
	TypeString      = "String"
	TypeBool        = "Bool"
	TypeUInt32      = "UInt32"
	TypeUInt64      = "UInt64"
	TypeInt64       = "Int64"
	TypeFloat64     = "Float64"
	TypeDateTime    = "DateTime64(3)"
	TypeStringArray = "Array(String)"
)

// Column is a typed table column
type Column struct {
	Name string
	Type string
}

// Zero returns the value written when a row leaves the column unset
func (c Column) Zero() interface{} {
	switch c.Type {
	case TypeString:
		return ""
	case TypeBool:
		return false
	case TypeUInt32:
		return uint32(0)
	case TypeUInt64:
		return uint64(0)
	case TypeInt64:
		return int64(0)
	case TypeFloat64:
		return float64(0)
	case TypeDateTime:
		return minClickHouseDateTime
	case TypeStringArray:
		return []string{}
	default:
		return nil
	}
}

// Accepts reports whether v has the Go type the column is written from
func (c Column) Accepts(v interface{}) bool {
	switch c.Type {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeUInt32:
		_, ok := v.(uint32)
		return ok
	case TypeUInt64:
		_, ok := v.(uint64)
		return ok
	case TypeInt64:
		_, ok := v.(int64)
		return ok
	case TypeFloat64:
		_, ok := v.(float64)
		return ok
	case TypeDateTime:
		_, ok := v.(time.Time)
		return ok
	case TypeStringArray:
		_, ok := v.([]string)
		return ok
	default:
		return false
	}
}

// Table describes a typed output table. Columns lists the event-specific
// columns only; the identity columns are added by the writer.
type Table struct {
	Name    string
	Columns []Column
}

// Validate checks column types and names
func (t Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table name is empty")
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, col := range t.Columns {
		switch col.Name {
		case "", ColumnEnvelopeID, ColumnTimestamp, ColumnIndex:
			return fmt.Errorf("table %s: invalid column name %q", t.Name, col.Name)
		}
		if seen[col.Name] {
			return fmt.Errorf("table %s: duplicate column %s", t.Name, col.Name)
		}
		seen[col.Name] = true
		if col.Zero() == nil {
			return fmt.Errorf("table %s: unsupported type %s for column %s", t.Name, col.Type, col.Name)
		}
	}
	return nil
}

// Row is one typed record produced by a handler for one envelope
type Row struct {
	Table      string
	EnvelopeID uuid.UUID
	Timestamp  time.Time
	Index      uint32
	Values     map[string]interface{}
}

// NewRow starts a row for table
func NewRow(table string, id uuid.UUID, ts time.Time, idx uint32) *Row {
	return &Row{
		Table:      table,
		EnvelopeID: id,
		Timestamp:  ts,
		Index:      idx,
		Values:     make(map[string]interface{}),
	}
}

// Set assigns a column value and returns the row for chaining
func (r *Row) Set(column string, value interface{}) *Row {
	r.Values[column] = value
	return r
}

// Writer persists handler rows to the typed sink
type Writer interface {
	// EnsureTables creates missing tables and registers their layout
	EnsureTables(ctx context.Context, tables []Table) error

	// WriteRow persists a single row of a registered table
	WriteRow(ctx context.Context, row *Row) error

	// Close releases the sink connection
	Close() error
}
