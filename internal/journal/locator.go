package journal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/SteelMorgan/journal-ingest/internal/domain"
)

// DefaultPattern is the naming convention of journal files
const DefaultPattern = "Journal.*.log"

// File describes a journal file on disk
type File struct {
	Name      string
	Path      string
	CreatedAt time.Time // From the filename; mtime when the name carries no timestamp
	ModTime   time.Time
	Size      int64
	Part      int
}

// Locator finds journal files in a single directory
type Locator struct {
	dir     string
	pattern string
}

// NewLocator creates a locator for files matching pattern in dir
func NewLocator(dir, pattern string) (*Locator, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid journal pattern %q: %w", pattern, err)
	}
	return &Locator{dir: dir, pattern: pattern}, nil
}

// Dir returns the journal directory
func (l *Locator) Dir() string {
	return l.dir
}

// List returns all matching files sorted by creation time (oldest first).
// Ties are broken by part number, then by name, so the order is stable.
func (l *Locator) List(ctx context.Context) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, &domain.FileAccessError{Op: "list", Path: l.dir, Err: err}
	}

	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(l.pattern, entry.Name()); !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// File vanished between ReadDir and Info
			continue
		}

		f := File{
			Name:    entry.Name(),
			Path:    filepath.Join(l.dir, entry.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		}
		if ts, part, err := ParseFilename(entry.Name()); err == nil {
			f.CreatedAt = ts
			f.Part = part
		} else {
			f.CreatedAt = info.ModTime()
		}
		files = append(files, f)
	}

	sort.Slice(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Part != b.Part {
			return a.Part < b.Part
		}
		return a.Name < b.Name
	})

	return files, nil
}

// Latest returns the file with the greatest last-write time, or nil
// when no file matches.
func (l *Locator) Latest(ctx context.Context) (*File, error) {
	files, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	// files is creation-ordered, so on equal mtimes the later-created file wins
	latest := files[0]
	for _, f := range files[1:] {
		if !f.ModTime.Before(latest.ModTime) {
			latest = f
		}
	}
	return &latest, nil
}

// NewCandidate returns the latest file only if it differs by name from both
// the currently tailed file and the previously tailed one. Timestamp jitter
// on either of those must not look like a rollover.
func (l *Locator) NewCandidate(ctx context.Context, current, last string) (*File, error) {
	latest, err := l.Latest(ctx)
	if err != nil || latest == nil {
		return nil, err
	}
	if latest.Name == current || latest.Name == last {
		return nil, nil
	}
	return latest, nil
}
