// Package parser performs the routing decode of journal lines: it extracts the
// type tag and timestamp and keeps the raw payload for the per-type handlers.
package parser

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/valyala/fastjson"

	"github.com/SteelMorgan/journal-ingest/internal/domain"
)

// Field names of the routing keys
const (
	TypeField      = "event"
	TimestampField = "timestamp"
)

// MaxTypeLen bounds the type tag to what the envelope stores can key on
const MaxTypeLen = 1<<16 - 1

var utf8BOM = []byte("\xef\xbb\xbf")

// Timestamps must fit in int64 nanoseconds since the epoch
var (
	minTimestamp = time.Unix(0, math.MinInt64).UTC()
	maxTimestamp = time.Unix(0, math.MaxInt64).UTC()
)

var parserPool fastjson.ParserPool

// timestampLayouts are tried in order; journals use RFC3339 with a Z suffix
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Parse decodes one journal line into a routed event.
// The returned event owns a copy of the line.
func Parse(line []byte) (*domain.Event, error) {
	line = bytes.TrimPrefix(line, utf8BOM)
	line = bytes.TrimRight(line, "\r\n")

	if len(bytes.TrimSpace(line)) == 0 {
		return nil, &domain.MalformedRecordError{Reason: "empty line"}
	}

	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(line)
	if err != nil {
		return nil, &domain.MalformedRecordError{Reason: "invalid JSON", Excerpt: domain.Excerpt(line), Err: err}
	}
	if v.Type() != fastjson.TypeObject {
		return nil, &domain.MalformedRecordError{Reason: "not a JSON object", Excerpt: domain.Excerpt(line)}
	}

	eventType := string(v.GetStringBytes(TypeField))
	if eventType == "" {
		return nil, &domain.MalformedRecordError{Reason: "missing event type", Excerpt: domain.Excerpt(line)}
	}
	if len(eventType) > MaxTypeLen {
		return nil, &domain.MalformedRecordError{Reason: "event type too long", Excerpt: domain.Excerpt(line)}
	}

	rawTimestamp := string(v.GetStringBytes(TimestampField))
	if rawTimestamp == "" {
		return nil, &domain.MalformedRecordError{Reason: "missing timestamp", Excerpt: domain.Excerpt(line)}
	}
	ts, err := ParseTimestamp(rawTimestamp)
	if err != nil {
		return nil, &domain.MalformedRecordError{Reason: "invalid timestamp", Excerpt: domain.Excerpt(line), Err: err}
	}
	if ts.Before(minTimestamp) || ts.After(maxTimestamp) {
		return nil, &domain.MalformedRecordError{Reason: "timestamp out of range", Excerpt: domain.Excerpt(line)}
	}

	raw := make([]byte, len(line))
	copy(raw, line)

	return &domain.Event{
		Type:      eventType,
		Timestamp: ts,
		Raw:       raw,
	}, nil
}

// ParseTimestamp parses a journal timestamp. Values without a zone are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", s)
}
