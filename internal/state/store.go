package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"git.home.luguber.info/inful/courseboot/internal/foundation"
)

// Store persists the Record as JSON with atomic writes. A single entrypoint
// process owns the file; the mutex only guards concurrent phase goroutines
// within it.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store for the record at path. Nothing is read until Load.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the record location.
func (s *Store) Path() string { return s.path }

// Load reads the record; a missing file yields a fresh uninitialized record.
func (s *Store) Load() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadUnsafe()
}

func (s *Store) loadUnsafe() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRecord(), nil
		}
		return nil, foundation.StateError("failed to read state record").
			WithCause(err).
			WithContext(foundation.Fields{"path": s.path}).
			Build()
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, foundation.StateError("state record is corrupt").
			WithCause(err).
			WithContext(foundation.Fields{"path": s.path}).
			Build()
	}
	if record.Phase == "" {
		record.Phase = PhaseUninitialized
	}
	if record.Rosters == nil {
		record.Rosters = make(map[string]RosterStamp)
	}
	return &record, nil
}

// Save writes the record atomically (temp file + rename).
func (s *Store) Save(record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveUnsafe(record)
}

func (s *Store) saveUnsafe(record *Record) error {
	record.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return foundation.StateError("failed to marshal state record").
			WithCause(err).
			Build()
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return foundation.StateError("failed to create state directory").
			WithCause(err).
			WithContext(foundation.Fields{"path": filepath.Dir(s.path)}).
			Build()
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return foundation.StateError("failed to write temporary state file").
			WithCause(err).
			WithContext(foundation.Fields{"path": tempPath}).
			Build()
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		return foundation.StateError("failed to replace state file").
			WithCause(err).
			WithContext(foundation.Fields{"path": s.path}).
			Build()
	}
	return nil
}

// Update applies fn to the current record and persists the result atomically.
func (s *Store) Update(fn func(*Record)) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.loadUnsafe()
	if err != nil {
		return nil, err
	}
	fn(record)
	if err := s.saveUnsafe(record); err != nil {
		return nil, err
	}
	return record, nil
}
