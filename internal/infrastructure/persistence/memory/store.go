// Package memory provides in-process implementations of the storage ports,
// used in tests and in development when no database is configured.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/center-hub/center-hub/internal/domain/shared"
)

// Store is an in-memory shared.SnapshotStore. Values are kept as JSON so that
// callers never share memory with the stored collection.
type Store struct {
	mu     sync.RWMutex
	values map[string][]byte
	writes map[string]int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		values: make(map[string][]byte),
		writes: make(map[string]int),
	}
}

// Load decodes the value under key into dest.
func (s *Store) Load(_ context.Context, key string, dest any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return true, errors.Wrapf(err, "memory: decode %q", key)
	}
	return true, nil
}

// Save replaces the value under key.
func (s *Store) Save(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "memory: encode %q", key)
	}
	s.mu.Lock()
	s.values[key] = raw
	s.writes[key]++
	s.mu.Unlock()
	return nil
}

// Writes returns how many times key has been saved.
func (s *Store) Writes(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes[key]
}

// Keys returns stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTION LOG
// ══════════════════════════════════════════════════════════════════════════════

// ActionLog is an in-memory shared.ActionLogRepository.
type ActionLog struct {
	mu      sync.Mutex
	records []shared.ActionRecord
}

// NewActionLog creates an empty log.
func NewActionLog() *ActionLog {
	return &ActionLog{}
}

// Append adds a record.
func (l *ActionLog) Append(_ context.Context, rec shared.ActionRecord) error {
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
	return nil
}

// Recent returns up to limit newest records, optionally for one entity.
func (l *ActionLog) Recent(_ context.Context, entityID string, limit int) ([]shared.ActionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]shared.ActionRecord, 0)
	for i := len(l.records) - 1; i >= 0; i-- {
		r := l.records[i]
		if entityID != "" && r.EntityID != entityID {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
