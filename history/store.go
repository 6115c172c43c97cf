// Package history keeps small JSON records in a pebble database keyed by job id.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	pebble "github.com/cockroachdb/pebble"
)

// ErrNotInitialized is returned by every operation on a store that is not open
var ErrNotInitialized = errors.New("store not initialized")

// Record is anything that can be kept in a Store
type Record interface {
	RecordTime() time.Time
}

// Store is a pebble-backed map from job id to record
type Store[T Record] struct {
	name string
	mu   sync.RWMutex
	db   *pebble.DB
}

// New returns a closed store; name is only used in error messages.
func New[T Record](name string) *Store[T] {
	return &Store[T]{name: name}
}

// Open opens (or creates) the database at path. Reopening closes the previous one.
func (s *Store[T]) Open(path string) error {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", s.name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		s.db.Close()
	}
	s.db = db
	return nil
}

// Close closes the database. Closing a closed store is a no-op.
func (s *Store[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Put stores rec under id, replacing any earlier record.
func (s *Store[T]) Put(id string, rec T) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", s.name, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return fmt.Errorf("%s %w", s.name, ErrNotInitialized)
	}
	return s.db.Set([]byte(id), data, pebble.Sync)
}

// Get returns the record for id, or nil when there is none.
func (s *Store[T]) Get(id string) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, fmt.Errorf("%s %w", s.name, ErrNotInitialized)
	}

	data, closer, err := s.db.Get([]byte(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s record: %w", s.name, err)
	}
	defer closer.Close()

	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s record: %w", s.name, err)
	}
	return &rec, nil
}

// Delete removes the record for id. Missing ids are not an error.
func (s *Store[T]) Delete(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return fmt.Errorf("%s %w", s.name, ErrNotInitialized)
	}
	return s.db.Delete([]byte(id), pebble.Sync)
}

// List returns every readable record, newest first.
func (s *Store[T]) List() ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, fmt.Errorf("%s %w", s.name, ErrNotInitialized)
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	records := []T{}
	for iter.First(); iter.Valid(); iter.Next() {
		var rec T
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue // skip corrupt entries
		}
		records = append(records, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iteration error: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].RecordTime().After(records[j].RecordTime())
	})
	return records, nil
}

// Cleanup deletes records older than maxAge and returns how many went.
func (s *Store[T]) Cleanup(maxAge time.Duration) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return 0, fmt.Errorf("%s %w", s.name, ErrNotInitialized)
	}

	cutoff := time.Now().Add(-maxAge)
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}

	var stale [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		var rec T
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		if rec.RecordTime().Before(cutoff) {
			stale = append(stale, append([]byte(nil), iter.Key()...))
		}
	}
	iterErr := iter.Error()
	iter.Close()
	if iterErr != nil {
		return 0, fmt.Errorf("iteration error: %w", iterErr)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	for _, key := range stale {
		if err := batch.Delete(key, nil); err != nil {
			return 0, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("failed to delete stale %s records: %w", s.name, err)
	}
	return len(stale), nil
}

// Ping reports whether the database is open and answering reads.
func (s *Store[T]) Ping() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return fmt.Errorf("%s %w", s.name, ErrNotInitialized)
	}
	_, closer, err := s.db.Get([]byte("__ping__"))
	if err == nil {
		closer.Close()
		return nil
	}
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	return err
}
