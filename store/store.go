// Package store implements the durable, single-file session store: one
// JSON file per installation, keyed by scope_key, written with a
// write-temp-then-rename swap and guarded by a process-wide file lock
// (github.com/gofrs/flock), so a half-written record is never visible to
// a concurrent reader; see DESIGN.md.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/sun-rs/three"
)

// fileVersion is the on-disk schema version.
const fileVersion = 1

// fileLayout is the exact on-disk JSON shape.
type fileLayout struct {
	Version   int                          `json:"version"`
	UpdatedAt time.Time                    `json:"updatedAt"`
	Scopes    map[string]three.SessionRecord `json:"scopes"`
}

// Store is a process-wide, file-backed map of scope_key -> SessionRecord.
// A single Store should be shared by every goroutine in the process; it
// serializes its own in-process access with a mutex and serializes
// cross-process access with an flock-based file lock around each mutation.
type Store struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// Open returns a Store backed by the JSON file at path, creating its parent
// directory if necessary. The file itself is created lazily on first Put.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, three.NewError(three.KindIOFailed, "creating session store directory: %v", err)
	}
	return &Store{path: path, lock: flock.New(path + ".lock")}, nil
}

// Get returns the record for scopeKey, or (zero, false) if none exists.
func (s *Store) Get(scopeKey string) (three.SessionRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	layout, err := s.readLocked()
	if err != nil {
		return three.SessionRecord{}, false, err
	}
	rec, ok := layout.Scopes[scopeKey]
	return rec, ok, nil
}

// Put durably writes rec under scopeKey, overwriting any existing record.
func (s *Store) Put(scopeKey string, rec three.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return three.NewError(three.KindIOFailed, "locking session store: %v", err)
	}
	defer s.lock.Unlock()

	layout, err := s.readUnlocked()
	if err != nil {
		return err
	}
	rec.ScopeKey = scopeKey
	layout.Scopes[scopeKey] = rec
	return s.writeUnlocked(layout)
}

// Remove deletes the record for scopeKey, if any. Removing an absent key is
// not an error.
func (s *Store) Remove(scopeKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return three.NewError(three.KindIOFailed, "locking session store: %v", err)
	}
	defer s.lock.Unlock()

	layout, err := s.readUnlocked()
	if err != nil {
		return err
	}
	delete(layout.Scopes, scopeKey)
	return s.writeUnlocked(layout)
}

// GetOrCreate returns the existing record for scopeKey, or persists and
// returns a freshly-built one from newRecord if none exists. The build and
// the persist happen under the same file lock so two processes racing to
// create the same scope cannot both win.
func (s *Store) GetOrCreate(scopeKey string, newRecord func() three.SessionRecord) (three.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return three.SessionRecord{}, three.NewError(three.KindIOFailed, "locking session store: %v", err)
	}
	defer s.lock.Unlock()

	layout, err := s.readUnlocked()
	if err != nil {
		return three.SessionRecord{}, err
	}
	if rec, ok := layout.Scopes[scopeKey]; ok {
		return rec, nil
	}
	rec := newRecord()
	rec.ScopeKey = scopeKey
	layout.Scopes[scopeKey] = rec
	if err := s.writeUnlocked(layout); err != nil {
		return three.SessionRecord{}, err
	}
	return rec, nil
}

// readLocked acquires the file lock for the duration of a read. Get() uses
// this standalone path since it does not need to hold the lock across a
// subsequent write.
func (s *Store) readLocked() (fileLayout, error) {
	if err := s.lock.RLock(); err != nil {
		return fileLayout{}, three.NewError(three.KindIOFailed, "locking session store: %v", err)
	}
	defer s.lock.Unlock()
	return s.readUnlocked()
}

// readUnlocked reads and decodes the store file, assuming the caller already
// holds the appropriate file lock. A missing file is treated as an empty
// store; the file itself is created lazily on first write.
func (s *Store) readUnlocked() (fileLayout, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileLayout{Version: fileVersion, Scopes: map[string]three.SessionRecord{}}, nil
		}
		return fileLayout{}, three.NewError(three.KindIOFailed, "reading session store: %v", err)
	}
	var layout fileLayout
	if err := json.Unmarshal(data, &layout); err != nil {
		return fileLayout{}, three.NewError(three.KindIOFailed, "decoding session store: %v", err)
	}
	if layout.Scopes == nil {
		layout.Scopes = map[string]three.SessionRecord{}
	}
	return layout, nil
}

// writeUnlocked persists layout via write-temp-then-rename so a crash mid-
// write never leaves a truncated file in place.
func (s *Store) writeUnlocked(layout fileLayout) error {
	layout.Version = fileVersion
	layout.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(layout, "", "  ")
	if err != nil {
		return three.NewError(three.KindIOFailed, "encoding session store: %v", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return three.NewError(three.KindIOFailed, "creating temp session store file: %v", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return three.NewError(three.KindIOFailed, "writing temp session store file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return three.NewError(three.KindIOFailed, "closing temp session store file: %v", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return three.NewError(three.KindIOFailed, "renaming temp session store file: %v", err)
	}
	return nil
}
