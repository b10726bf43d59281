package store

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"

	"github.com/SteelMorgan/journal-ingest/internal/domain"
)

var (
	journalsBucket      = []byte("journals")       // filename → progress
	envelopesBucket     = []byte("envelopes")      // envelope id → envelope
	envelopeKeysBucket  = []byte("envelope_keys")  // filename|line → envelope id
	envelopeTypesBucket = []byte("envelope_types") // type|envelope id → nil
)

// BoltStore implements Store on an embedded BoltDB file
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) a BoltDB store
func NewBoltStore(dbPath string) (*BoltStore, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		// A lock held by a previous process that was not shut down cleanly
		// cannot be broken from here
		return nil, fmt.Errorf("failed to open boltdb (file may be locked by another process): %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{journalsBucket, envelopesBucket, envelopeKeysBucket, envelopeTypesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	log.Info().
		Str("db_path", dbPath).
		Msg("BoltDB store initialized")

	return &BoltStore{db: db}, nil
}

// GetOrCreate implements Ledger
func (s *BoltStore) GetOrCreate(ctx context.Context, filename string, createdAt time.Time) (uint64, error) {
	var lines uint64

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(journalsBucket)

		if val := b.Get([]byte(filename)); val != nil {
			p, err := decodeProgress(filename, val)
			if err != nil {
				return err
			}
			lines = p.LinesImported
			return nil
		}

		now := time.Now().UTC()
		return b.Put([]byte(filename), encodeProgress(domain.Progress{
			Filename:  filename,
			CreatedAt: createdAt,
			UpdatedAt: now,
		}))
	})
	if err != nil {
		return 0, sinkError("ledger get-or-create", err)
	}

	return lines, nil
}

// Update implements Ledger
func (s *BoltStore) Update(ctx context.Context, filename string, linesImported uint64, completed bool) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(journalsBucket)

		p := domain.Progress{Filename: filename}
		if val := b.Get([]byte(filename)); val != nil {
			stored, err := decodeProgress(filename, val)
			if err != nil {
				return err
			}
			p = stored
		}

		if linesImported < p.LinesImported {
			log.Debug().
				Str("file", filename).
				Uint64("stored", p.LinesImported).
				Uint64("requested", linesImported).
				Msg("Ignoring ledger regression")
		} else {
			p.LinesImported = linesImported
		}
		p.Completed = p.Completed || completed
		p.UpdatedAt = time.Now().UTC()

		return b.Put([]byte(filename), encodeProgress(p))
	})
	if err != nil {
		return sinkError("ledger update", err)
	}

	log.Debug().
		Str("file", filename).
		Uint64("lines_imported", linesImported).
		Bool("completed", completed).
		Msg("Ledger updated")

	return nil
}

// Get implements Ledger
func (s *BoltStore) Get(ctx context.Context, filename string) (domain.Progress, bool, error) {
	var p domain.Progress
	var found bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket(journalsBucket).Get([]byte(filename))
		if val == nil {
			return nil
		}
		stored, err := decodeProgress(filename, val)
		if err != nil {
			return err
		}
		p, found = stored, true
		return nil
	})
	if err != nil {
		return domain.Progress{}, false, sinkError("ledger get", err)
	}
	return p, found, nil
}

// List implements Ledger
func (s *BoltStore) List(ctx context.Context) ([]domain.Progress, error) {
	var result []domain.Progress

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(journalsBucket).ForEach(func(k, v []byte) error {
			p, err := decodeProgress(string(k), v)
			if err != nil {
				return err
			}
			result = append(result, p)
			return nil
		})
	})
	if err != nil {
		return nil, sinkError("ledger list", err)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].Filename < result[j].Filename
	})
	return result, nil
}

// EnsureEnvelope implements Envelopes
func (s *BoltStore) EnsureEnvelope(ctx context.Context, env *domain.Envelope) (*domain.Envelope, bool, error) {
	var stored *domain.Envelope
	var created bool

	err := s.db.Update(func(tx *bbolt.Tx) error {
		keys := tx.Bucket(envelopeKeysBucket)
		envelopes := tx.Bucket(envelopesBucket)

		lk := lineKey(env.Key())
		if id := keys.Get(lk); id != nil {
			existing, err := decodeEnvelope(id, envelopes.Get(id))
			if err != nil {
				return err
			}
			stored = existing
			return nil
		}

		id := env.ID
		if id == uuid.Nil {
			id = domain.EnvelopeID(env.Key())
		}
		fresh := *env
		fresh.ID = id
		fresh.Parsed = false

		val, err := encodeEnvelope(&fresh)
		if err != nil {
			return err
		}
		if err := envelopes.Put(id[:], val); err != nil {
			return err
		}
		if err := keys.Put(lk, id[:]); err != nil {
			return err
		}
		if err := tx.Bucket(envelopeTypesBucket).Put(typeKey(fresh.Type, id), nil); err != nil {
			return err
		}

		stored = &fresh
		created = true
		return nil
	})
	if err != nil {
		return nil, false, sinkError("envelope ensure", err)
	}

	return stored, created, nil
}

// MarkParsed implements Envelopes
func (s *BoltStore) MarkParsed(ctx context.Context, id uuid.UUID) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(envelopesBucket)

		val := b.Get(id[:])
		if val == nil {
			return fmt.Errorf("envelope %s not found", id)
		}
		if len(val) < envelopeHeaderLen {
			return fmt.Errorf("envelope %s: %w", id, errShortValue)
		}
		if val[16] == 1 {
			return nil
		}

		// Values returned by Get are only valid for the transaction
		updated := make([]byte, len(val))
		copy(updated, val)
		updated[16] = 1
		return b.Put(id[:], updated)
	})
	if err != nil {
		return sinkError("envelope mark parsed", err)
	}
	return nil
}

// GetEnvelope implements Envelopes
func (s *BoltStore) GetEnvelope(ctx context.Context, key domain.LineKey) (*domain.Envelope, error) {
	var env *domain.Envelope

	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(envelopeKeysBucket).Get(lineKey(key))
		if id == nil {
			return nil
		}
		decoded, err := decodeEnvelope(id, tx.Bucket(envelopesBucket).Get(id))
		if err != nil {
			return err
		}
		env = decoded
		return nil
	})
	if err != nil {
		return nil, sinkError("envelope get", err)
	}
	return env, nil
}

// ListEnvelopes implements Envelopes
func (s *BoltStore) ListEnvelopes(ctx context.Context, types []string) ([]*domain.Envelope, error) {
	var result []*domain.Envelope

	err := s.db.View(func(tx *bbolt.Tx) error {
		envelopes := tx.Bucket(envelopesBucket)

		collect := func(id []byte) error {
			env, err := decodeEnvelope(id, envelopes.Get(id))
			if err != nil {
				return err
			}
			result = append(result, env)
			return nil
		}

		if len(types) == 0 {
			return tx.Bucket(envelopeKeysBucket).ForEach(func(_, id []byte) error {
				return collect(id)
			})
		}

		c := tx.Bucket(envelopeTypesBucket).Cursor()
		seen := make(map[string]bool, len(types))
		for _, eventType := range types {
			if seen[eventType] {
				continue
			}
			seen[eventType] = true

			prefix := append([]byte(eventType), 0)
			for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
				if err := collect(k[len(prefix):]); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, sinkError("envelope list", err)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Filename != result[j].Filename {
			return result[i].Filename < result[j].Filename
		}
		return result[i].Line < result[j].Line
	})
	return result, nil
}

// Close closes the BoltDB database
func (s *BoltStore) Close() error {
	log.Info().Msg("Closing BoltDB store")
	return s.db.Close()
}
