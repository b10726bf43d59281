package domain

import "time"

// Progress represents the import progress of one journal file
type Progress struct {
	Filename      string    // Journal filename, unique within the journal directory
	CreatedAt     time.Time // Creation time derived from the filename (mtime fallback)
	LinesImported uint64    // Number of lines consumed so far
	Completed     bool      // No further writer is expected
	UpdatedAt     time.Time
}
