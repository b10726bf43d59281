package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/SteelMorgan/journal-ingest/internal/domain"
)

func TestPrintStatus(t *testing.T) {
	now := time.Date(2021, 3, 15, 18, 30, 0, 0, time.UTC)

	var buf bytes.Buffer
	err := printStatus(&buf, []domain.Progress{
		{Filename: "Journal.001.log", CreatedAt: now, LinesImported: 50, Completed: true, UpdatedAt: now},
		{Filename: "Journal.002.log", CreatedAt: now, LinesImported: 10, UpdatedAt: now},
	})
	if err != nil {
		t.Fatalf("printStatus() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "FILE") {
		t.Errorf("unexpected header %q", lines[0])
	}
	for i, want := range []string{"Journal.001.log  ", "Journal.002.log  "} {
		if !strings.HasPrefix(lines[i+1], want) {
			t.Errorf("row %d = %q, want prefix %q", i, lines[i+1], want)
		}
	}
	if !strings.Contains(lines[1], " 50 ") || !strings.Contains(lines[1], "true") {
		t.Errorf("row for completed file missing fields: %q", lines[1])
	}
	if !strings.Contains(lines[2], "false") {
		t.Errorf("row for active file missing completed=false: %q", lines[2])
	}
}
