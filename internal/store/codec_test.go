package store

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestUnixNano_Clamps(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want int64
	}{
		{name: "zero", in: time.Time{}, want: 0},
		{name: "in range", in: time.Unix(0, 42), want: 42},
		{name: "before 1678", in: time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC), want: math.MinInt64},
		{name: "after 2262", in: time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC), want: math.MaxInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := unixNano(tt.in); got != tt.want {
				t.Errorf("unixNano() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEncodeEnvelope_RejectsLongStrings(t *testing.T) {
	long := strings.Repeat("x", maxStringLen+1)

	env := testEnvelope("Journal.001.log", 1, long)
	if _, err := encodeEnvelope(env); !errors.Is(err, errLongString) {
		t.Errorf("long type: expected errLongString, got %v", err)
	}

	env = testEnvelope(long, 1, "Scan")
	if _, err := encodeEnvelope(env); !errors.Is(err, errLongString) {
		t.Errorf("long filename: expected errLongString, got %v", err)
	}

	env = testEnvelope("Journal.001.log", 1, strings.Repeat("x", maxStringLen))
	val, err := encodeEnvelope(env)
	if err != nil {
		t.Fatalf("type at limit: %v", err)
	}
	got, err := decodeEnvelope(env.ID[:], val)
	if err != nil {
		t.Fatalf("decodeEnvelope() error = %v", err)
	}
	if got.Type != env.Type || got.Filename != env.Filename || !got.Timestamp.Equal(env.Timestamp) {
		t.Errorf("decoded envelope mismatch: type len %d, filename %q", len(got.Type), got.Filename)
	}
}
