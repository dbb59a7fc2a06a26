package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dandantas/pulse/internal/model"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Store is an append-only LevelDB archive of fetched records.
//
// Layout:
//
//	r:<kind>:<KEY>:<unix nanos, zero padded>  -> record JSON
//	l:<kind>:<KEY>                            -> record JSON of the latest capture
type Store struct {
	db  *leveldb.DB
	now func() time.Time

	mu     sync.Mutex
	closed bool
}

// Open opens or creates the archive at path
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	slog.Info("Opened record archive", "path", path)
	return &Store{db: db, now: time.Now}, nil
}

// WithClock overrides the clock used to stamp records saved without a capture time
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Close releases the underlying database
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Save appends records in a single batch and advances each key's latest pointer
func (s *Store) Save(ctx context.Context, kind model.DataKind, records []model.DataRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	savedAt := s.now()
	batch := new(leveldb.Batch)
	for _, rec := range records {
		rec = model.WithCapturedAt(rec, savedAt)
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode %s record %s: %w", kind, rec.TrackedKey(), err)
		}
		key := model.NormalizeKey(rec.TrackedKey())
		batch.Put(historyKey(kind, key, rec.CapturedAt()), b)

		if s.isNewer(kind, key, rec.CapturedAt()) {
			batch.Put(latestKey(kind, key), b)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return leveldb.ErrClosed
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("write archive batch: %w", err)
	}
	return nil
}

// Latest returns the most recent archived record of every key of kind
func (s *Store) Latest(kind model.DataKind) ([]model.DataRecord, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte("l:"+string(kind)+":")), nil)
	defer it.Release()

	var out []model.DataRecord
	for it.Next() {
		rec, err := decode(kind, it.Value())
		if err != nil {
			slog.Warn("Skipping unreadable archive entry", "key", string(it.Key()), "error", err)
			continue
		}
		out = append(out, rec)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// History returns up to limit archived records for key, newest first
func (s *Store) History(kind model.DataKind, key string, limit int) ([]model.DataRecord, error) {
	prefix := []byte("r:" + string(kind) + ":" + model.NormalizeKey(key) + ":")
	it := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	var out []model.DataRecord
	for ok := it.Last(); ok && (limit <= 0 || len(out) < limit); ok = it.Prev() {
		rec, err := decode(kind, it.Value())
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) isNewer(kind model.DataKind, key string, captured time.Time) bool {
	b, err := s.db.Get(latestKey(kind, key), nil)
	if err != nil {
		return true
	}
	current, err := decode(kind, b)
	if err != nil {
		return true
	}
	return !captured.Before(current.CapturedAt())
}

func historyKey(kind model.DataKind, key string, captured time.Time) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "r:%s:%s:%020d", kind, key, captured.UnixNano())
	return buf.Bytes()
}

func latestKey(kind model.DataKind, key string) []byte {
	return []byte("l:" + string(kind) + ":" + key)
}

func decode(kind model.DataKind, b []byte) (model.DataRecord, error) {
	switch kind {
	case model.KindStock:
		var q model.StockQuote
		if err := json.Unmarshal(b, &q); err != nil {
			return nil, err
		}
		return q, nil
	case model.KindWeather:
		var w model.WeatherReading
		if err := json.Unmarshal(b, &w); err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unknown data kind %q", kind)
	}
}
