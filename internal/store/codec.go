package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/SteelMorgan/journal-ingest/internal/domain"
)

// Progress value layout (big endian):
//   lines_imported u64 | completed u8 | created_at i64 | updated_at i64
const progressValueLen = 8 + 1 + 8 + 8

// Envelope value layout (big endian):
//   line u64 | timestamp i64 | parsed u8 | len(filename) u16 | filename |
//   len(type) u16 | type | zstd(raw)
const envelopeHeaderLen = 8 + 8 + 1

const maxStringLen = 1<<16 - 1

var (
	errShortValue   = errors.New("value too short")
	errLongString   = errors.New("string exceeds 65535 bytes")
	minUnixNanoTime = time.Unix(0, math.MinInt64)
	maxUnixNanoTime = time.Unix(0, math.MaxInt64)
)

var (
	payloadEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	payloadDecoder, _ = zstd.NewReader(nil)
)

func encodeProgress(p domain.Progress) []byte {
	val := make([]byte, progressValueLen)
	binary.BigEndian.PutUint64(val[0:8], p.LinesImported)
	if p.Completed {
		val[8] = 1
	}
	binary.BigEndian.PutUint64(val[9:17], uint64(unixNano(p.CreatedAt)))
	binary.BigEndian.PutUint64(val[17:25], uint64(unixNano(p.UpdatedAt)))
	return val
}

func decodeProgress(filename string, val []byte) (domain.Progress, error) {
	if len(val) < progressValueLen {
		return domain.Progress{}, fmt.Errorf("progress for %s: %w", filename, errShortValue)
	}
	return domain.Progress{
		Filename:      filename,
		LinesImported: binary.BigEndian.Uint64(val[0:8]),
		Completed:     val[8] == 1,
		CreatedAt:     fromUnixNano(int64(binary.BigEndian.Uint64(val[9:17]))),
		UpdatedAt:     fromUnixNano(int64(binary.BigEndian.Uint64(val[17:25]))),
	}, nil
}

func encodeEnvelope(env *domain.Envelope) ([]byte, error) {
	if len(env.Filename) > maxStringLen {
		return nil, fmt.Errorf("envelope filename: %w", errLongString)
	}
	if len(env.Type) > maxStringLen {
		return nil, fmt.Errorf("envelope type: %w", errLongString)
	}

	payload := payloadEncoder.EncodeAll(env.Raw, nil)

	val := make([]byte, 0, envelopeHeaderLen+4+len(env.Filename)+len(env.Type)+len(payload))
	val = binary.BigEndian.AppendUint64(val, env.Line)
	val = binary.BigEndian.AppendUint64(val, uint64(unixNano(env.Timestamp)))
	if env.Parsed {
		val = append(val, 1)
	} else {
		val = append(val, 0)
	}
	val = binary.BigEndian.AppendUint16(val, uint16(len(env.Filename)))
	val = append(val, env.Filename...)
	val = binary.BigEndian.AppendUint16(val, uint16(len(env.Type)))
	val = append(val, env.Type...)
	return append(val, payload...), nil
}

func decodeEnvelope(id []byte, val []byte) (*domain.Envelope, error) {
	envID, err := uuid.FromBytes(id)
	if err != nil {
		return nil, fmt.Errorf("invalid envelope id: %w", err)
	}
	if len(val) < envelopeHeaderLen+2 {
		return nil, fmt.Errorf("envelope %s: %w", envID, errShortValue)
	}

	env := &domain.Envelope{
		ID:        envID,
		Line:      binary.BigEndian.Uint64(val[0:8]),
		Timestamp: fromUnixNano(int64(binary.BigEndian.Uint64(val[8:16]))),
		Parsed:    val[16] == 1,
	}
	rest := val[envelopeHeaderLen:]

	filename, rest, err := readString(rest)
	if err != nil {
		return nil, fmt.Errorf("envelope %s filename: %w", envID, err)
	}
	eventType, rest, err := readString(rest)
	if err != nil {
		return nil, fmt.Errorf("envelope %s type: %w", envID, err)
	}
	raw, err := payloadDecoder.DecodeAll(rest, nil)
	if err != nil {
		return nil, fmt.Errorf("envelope %s payload: %w", envID, err)
	}

	env.Filename = filename
	env.Type = eventType
	env.Raw = raw
	return env, nil
}

func readString(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, errShortValue
	}
	n := int(binary.BigEndian.Uint16(b[0:2]))
	if len(b) < 2+n {
		return "", nil, errShortValue
	}
	return string(b[2 : 2+n]), b[2+n:], nil
}

// lineKey is filename | 0x00 | line (u64 big endian), so a cursor walks the
// lines of one file in order
func lineKey(key domain.LineKey) []byte {
	b := make([]byte, 0, len(key.Filename)+1+8)
	b = append(b, key.Filename...)
	b = append(b, 0)
	return binary.BigEndian.AppendUint64(b, key.Line)
}

// typeKey is type | 0x00 | envelope id
func typeKey(eventType string, id uuid.UUID) []byte {
	b := make([]byte, 0, len(eventType)+1+16)
	b = append(b, eventType...)
	b = append(b, 0)
	return append(b, id[:]...)
}

// unixNano clamps to the int64 range; zero time maps to 0
func unixNano(t time.Time) int64 {
	switch {
	case t.IsZero():
		return 0
	case t.Before(minUnixNanoTime):
		return math.MinInt64
	case t.After(maxUnixNanoTime):
		return math.MaxInt64
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
