package ingest

import (
	"bufio"
	"bytes"
	"io"
)

// lineReader yields newline-terminated lines from a file that may still be
// growing. An unterminated tail is buffered until its terminator arrives
// or Flush is called.
type lineReader struct {
	r       *bufio.Reader
	partial []byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next complete line without its terminator. ok is false
// when no complete line is available yet.
func (lr *lineReader) Next() (line []byte, ok bool, err error) {
	chunk, err := lr.r.ReadBytes('\n')
	lr.partial = append(lr.partial, chunk...)
	if err == io.EOF {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	line = bytes.TrimSuffix(lr.partial, []byte{'\n'})
	lr.partial = nil
	return line, true, nil
}

// Flush returns the buffered unterminated line, if any
func (lr *lineReader) Flush() ([]byte, bool) {
	if len(lr.partial) == 0 {
		return nil, false
	}
	line := lr.partial
	lr.partial = nil
	return line, true
}
