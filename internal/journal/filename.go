package journal

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// Journal filename pattern: <Prefix>.<timestamp>.<part>.log
// Two timestamp encodings are in the wild:
//   - legacy:  Journal.210315183040.01.log       → 2021-03-15 18:30:40
//   - current: Journal.2021-03-15T183040.01.log  → 2021-03-15 18:30:40
var filenameRegex = regexp.MustCompile(`^[^.]+\.(\d{12}|\d{4}-\d{2}-\d{2}T\d{6})\.(\d+)\.log$`)

const (
	legacyLayout  = "060102150405"
	currentLayout = "2006-01-02T150405"
)

// ParseFilename extracts the creation timestamp and part number encoded in a
// journal filename. Timestamps are local time, as written by the producer.
func ParseFilename(name string) (time.Time, int, error) {
	baseName := filepath.Base(name)

	matches := filenameRegex.FindStringSubmatch(baseName)
	if len(matches) != 3 {
		return time.Time{}, 0, fmt.Errorf("no journal timestamp found in filename: %s", name)
	}

	layout := legacyLayout
	if len(matches[1]) != len(legacyLayout) {
		layout = currentLayout
	}

	ts, err := time.ParseInLocation(layout, matches[1], time.Local)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid timestamp in filename %s: %w", name, err)
	}

	part, err := strconv.Atoi(matches[2])
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid part number in filename %s: %w", name, err)
	}

	return ts, part, nil
}
