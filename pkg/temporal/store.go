// Package temporal implements the anchor+delta value store: a current
// value plus an append-only, per-key ordered change history.
package temporal

import (
	"sync"
	"time"

	"github.com/agrama/agrama"
)

// Change is one recorded mutation of a key: (key, timestamp, content,
// author). Timestamps are monotonic within a key: a new change for key K
// has a timestamp strictly greater than any prior change for K, but
// ordering across keys is not required.
type Change struct {
	Key       string
	Timestamp time.Time
	Content   []byte
	Author    string
}

// record is a key's mutable state: current value plus full history.
type record struct {
	mu      sync.RWMutex
	history []Change // append-only, oldest first
}

// Store is the temporal file/value store. A reader-writer lock guards the
// top-level key map (structural changes: new keys); each key's history is
// additionally guarded by its own lock so unrelated keys never contend.
type Store struct {
	mapMu sync.RWMutex
	keys  map[string]*record
}

// New returns an empty temporal store.
func New() *Store {
	return &Store{keys: make(map[string]*record)}
}

func (s *Store) recordFor(key string, create bool) *record {
	s.mapMu.RLock()
	r, ok := s.keys[key]
	s.mapMu.RUnlock()
	if ok || !create {
		return r
	}

	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	if r, ok = s.keys[key]; ok {
		return r
	}
	r = &record{}
	s.keys[key] = r
	return r
}

// Save appends a change with the current timestamp and updates the current
// value. Saving identical content still appends a change: history is
// append-only by contract. The only failure mode is allocation failure,
// surfaced as KindOutOfMemory. Go gives no way to intercept that
// synchronously, so this signature returns an error for interface symmetry
// with callers that wrap a bounded allocator.
func (s *Store) Save(key string, content []byte, author string) (Change, error) {
	r := s.recordFor(key, true)

	r.mu.Lock()
	defer r.mu.Unlock()

	ts := time.Now()
	if n := len(r.history); n > 0 && !ts.After(r.history[n-1].Timestamp) {
		// Guarantee strict per-key monotonicity even under a coarse system
		// clock or back-to-back saves within the same tick.
		ts = r.history[n-1].Timestamp.Add(time.Nanosecond)
	}

	content = append([]byte(nil), content...) // defensive copy
	ch := Change{Key: key, Timestamp: ts, Content: content, Author: author}
	r.history = append(r.history, ch)
	return ch, nil
}

// GetCurrent returns the content of the last change for key, or
// KindNotFound if key was never saved.
func (s *Store) GetCurrent(key string) ([]byte, error) {
	r := s.recordFor(key, false)
	if r == nil {
		return nil, agrama.NewError(agrama.KindNotFound, "get_current", nil)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.history) == 0 {
		return nil, agrama.NewError(agrama.KindNotFound, "get_current", nil)
	}
	last := r.history[len(r.history)-1]
	return append([]byte(nil), last.Content...), nil
}

// GetHistory returns up to limit most recent changes for key, newest
// first. Returns an empty slice if the key is absent. limit must be >= 1.
func (s *Store) GetHistory(key string, limit int) ([]Change, error) {
	if limit <= 0 {
		return nil, agrama.NewError(agrama.KindInvalidArgument, "get_history", nil)
	}

	r := s.recordFor(key, false)
	if r == nil {
		return []Change{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.history)
	if limit > n {
		limit = n
	}
	out := make([]Change, limit)
	for i := 0; i < limit; i++ {
		out[i] = r.history[n-1-i]
	}
	return out, nil
}

// Snapshot returns an iterator over (key, current value) pairs, for
// maintenance use (e.g. pkg/snapshot). It is consistent with respect to
// concurrent writes only if the caller holds no concurrent writers.
func (s *Store) Snapshot() func(yield func(key string, current []byte) bool) {
	return func(yield func(key string, current []byte) bool) {
		s.mapMu.RLock()
		keys := make([]string, 0, len(s.keys))
		for k := range s.keys {
			keys = append(keys, k)
		}
		s.mapMu.RUnlock()

		for _, k := range keys {
			v, err := s.GetCurrent(k)
			if err != nil {
				continue
			}
			if !yield(k, v) {
				return
			}
		}
	}
}

// Version returns the number of changes recorded for key so far, 0 if the
// key has never been saved. Callers that read-then-compute-then-write (the
// dispatcher's transform primitive) use this to detect a concurrent writer
// racing the same key.
func (s *Store) Version(key string) int {
	r := s.recordFor(key, false)
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.history)
}

// SaveIfVersion appends a change only if key's current history length
// equals expected; otherwise it returns KindConflict without mutating
// anything, so a caller can retry against the now-current value. This is
// the store's only optimistic-concurrency primitive: ordinary Save never
// conflicts.
func (s *Store) SaveIfVersion(key string, expected int, content []byte, author string) (Change, error) {
	r := s.recordFor(key, true)

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.history) != expected {
		return Change{}, agrama.NewError(agrama.KindConflict, "save_if_version", nil)
	}

	ts := time.Now()
	if n := len(r.history); n > 0 && !ts.After(r.history[n-1].Timestamp) {
		ts = r.history[n-1].Timestamp.Add(time.Nanosecond)
	}

	content = append([]byte(nil), content...)
	ch := Change{Key: key, Timestamp: ts, Content: content, Author: author}
	r.history = append(r.history, ch)
	return ch, nil
}

// KeyCount returns the number of keys ever saved, including keys whose
// history starts with a later-superseded value. Used by maintenance
// tooling and tests.
func (s *Store) KeyCount() int {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()
	return len(s.keys)
}

// Restore replaces the store's entire contents with changes, grouping them
// by key and preserving the timestamps they already carry. It is used by
// pkg/snapshot to reconstruct a store from persisted history and does not
// re-derive or validate monotonicity: the caller is responsible for
// supplying changes that were themselves produced by this store.
func (s *Store) Restore(changes []Change) {
	byKey := make(map[string][]Change, len(changes))
	for _, c := range changes {
		byKey[c.Key] = append(byKey[c.Key], c)
	}

	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	s.keys = make(map[string]*record, len(byKey))
	for key, history := range byKey {
		s.keys[key] = &record{history: history}
	}
}
