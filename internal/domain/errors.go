package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// FileAccessError reports a failure to list, stat, open or read journal files.
// It is transient: the owning loop retries on its next iteration.
type FileAccessError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("file access: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

// SinkConnectionError reports a failed ledger or envelope store operation.
// Progress is never advanced past a SinkConnectionError.
type SinkConnectionError struct {
	Op  string
	Err error
}

func (e *SinkConnectionError) Error() string {
	return fmt.Sprintf("sink: %s: %v", e.Op, e.Err)
}

func (e *SinkConnectionError) Unwrap() error { return e.Err }

// MalformedRecordError reports a journal line that cannot be routed
type MalformedRecordError struct {
	Reason  string
	Excerpt string // First bytes of the offending line
	Err     error
}

func (e *MalformedRecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed record: %s: %v (line %q)", e.Reason, e.Err, e.Excerpt)
	}
	return fmt.Sprintf("malformed record: %s (line %q)", e.Reason, e.Excerpt)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// HandlerError reports a failure of a per-type handler, either while
// mapping the event or while writing one of its sub-records.
type HandlerError struct {
	Type       string
	Table      string
	EnvelopeID uuid.UUID
	Err        error
}

func (e *HandlerError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("handler %s: table %s: envelope %s: %v", e.Type, e.Table, e.EnvelopeID, e.Err)
	}
	return fmt.Sprintf("handler %s: envelope %s: %v", e.Type, e.EnvelopeID, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// IsMalformed reports whether err is (or wraps) a MalformedRecordError
func IsMalformed(err error) bool {
	var target *MalformedRecordError
	return errors.As(err, &target)
}

// IsSinkConnection reports whether err is (or wraps) a SinkConnectionError
func IsSinkConnection(err error) bool {
	var target *SinkConnectionError
	return errors.As(err, &target)
}

// IsFileAccess reports whether err is (or wraps) a FileAccessError
func IsFileAccess(err error) bool {
	var target *FileAccessError
	return errors.As(err, &target)
}

// Excerpt shortens a line for logs and errors
func Excerpt(line []byte) string {
	const max = 100
	if len(line) <= max {
		return string(line)
	}
	return string(line[:max]) + "..."
}
