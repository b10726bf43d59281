package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// envelopeNamespace seeds deterministic envelope IDs so the same line
// always maps to the same ID, across workers and restarts.
var envelopeNamespace = uuid.MustParse("6f1c3b0e-5a7d-4c59-9b1e-2f0a8d4e7c11")

// LineKey identifies a single line of a journal file (1-based line number)
type LineKey struct {
	Filename string
	Line     uint64
}

func (k LineKey) String() string {
	return fmt.Sprintf("%s:%d", k.Filename, k.Line)
}

// EnvelopeID returns the deterministic envelope ID for a line
func EnvelopeID(key LineKey) uuid.UUID {
	return uuid.NewSHA1(envelopeNamespace, []byte(key.String()))
}

// Event is a journal line after routing decode: type tag, timestamp and
// the untouched raw payload. Type-specific fields are decoded by handlers.
type Event struct {
	Type      string
	Timestamp time.Time
	Raw       []byte
}

// Envelope is the generic, type-tagged record of one event occurrence
type Envelope struct {
	ID        uuid.UUID
	Filename  string
	Line      uint64
	Timestamp time.Time
	Type      string
	Raw       []byte
	Parsed    bool // Handlers have been run for this envelope
}

// Key returns the (filename, line) key of the envelope
func (e *Envelope) Key() LineKey {
	return LineKey{Filename: e.Filename, Line: e.Line}
}

// Event returns the routing view of the envelope, used by reprocessing
func (e *Envelope) Event() *Event {
	return &Event{Type: e.Type, Timestamp: e.Timestamp, Raw: e.Raw}
}

// NewEnvelope builds an unparsed envelope for a decoded line
func NewEnvelope(key LineKey, ev *Event) *Envelope {
	return &Envelope{
		ID:        EnvelopeID(key),
		Filename:  key.Filename,
		Line:      key.Line,
		Timestamp: ev.Timestamp,
		Type:      ev.Type,
		Raw:       ev.Raw,
	}
}
