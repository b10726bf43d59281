// Package events holds the shipped per-type handlers. Each handler decodes
// the raw payload into its own struct and maps it to rows of one or more
// tables keyed by (envelope_id, idx).
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/SteelMorgan/journal-ingest/internal/dispatch"
	"github.com/SteelMorgan/journal-ingest/internal/domain"
	"github.com/SteelMorgan/journal-ingest/internal/writer"
)

// handler is a dispatch.Handler for payload type T
type handler[T any] struct {
	eventType string
	tables    []writer.Table
	rows      func(id uuid.UUID, ts time.Time, p *T) []*writer.Row
}

func (h *handler[T]) Type() string { return h.eventType }

func (h *handler[T]) Tables() []writer.Table { return h.tables }

func (h *handler[T]) Rows(id uuid.UUID, ev *domain.Event) ([]*writer.Row, error) {
	var payload T
	if err := json.Unmarshal(ev.Raw, &payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", h.eventType, err)
	}
	return h.rows(id, ev.Timestamp, &payload), nil
}

// All returns a fresh instance of every shipped handler
func All() []dispatch.Handler {
	return []dispatch.Handler{
		newCommander(),
		newLoadGame(),
		newRank(),
		newProgress(),
		newReputation(),
		newFSDJump(),
		newFSDTarget(),
		newStartJump(),
		newLocation(),
		newScan(),
		newMaterials(),
		newBounty(),
		newReceiveText(),
	}
}

// Register adds every shipped handler to r
func Register(r *dispatch.Registry) error {
	for _, h := range All() {
		if err := r.Register(h); err != nil {
			return err
		}
	}
	return nil
}

func str(name string) writer.Column  { return writer.Column{Name: name, Type: writer.TypeString} }
func i64(name string) writer.Column  { return writer.Column{Name: name, Type: writer.TypeInt64} }
func f64(name string) writer.Column  { return writer.Column{Name: name, Type: writer.TypeFloat64} }
func flag(name string) writer.Column { return writer.Column{Name: name, Type: writer.TypeBool} }

// faction appears either as a plain name or as {"Name": ..., "FactionState": ...}
type faction struct {
	Name  string
	State string
}

func (f *faction) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		f.Name = name
		return nil
	}

	var obj struct {
		Name         string `json:"Name"`
		FactionState string `json:"FactionState"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	f.Name = obj.Name
	f.State = obj.FactionState
	return nil
}

// starPos is the [x, y, z] coordinate triple
type starPos []float64

func (p starPos) axis(i int) float64 {
	if i < len(p) {
		return p[i]
	}
	return 0
}
