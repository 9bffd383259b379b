package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/julianstephens/affirm/internal/models"
)

type jsonSnapshot struct {
	CreatedAt time.Time                        `json:"created_at"`
	Entries   map[string]models.CachedResponse `json:"entries"`
}

type Store struct {
	Version   int                        `json:"version"`
	Records   map[string]json.RawMessage `json:"records"`
	Snapshots map[string]*jsonSnapshot   `json:"snapshots"`
}

// JSONStore keeps everything in a single JSON document. It is selected when --config ends in .json.
// Several processes may share the file: every operation holds a lock on a sibling .lock file and
// works on a fresh read of the document.
type JSONStore struct {
	path   string
	mu     sync.Mutex
	lock   *flock.Flock
	loaded bool
}

func NewJSONStore(configPath string) *JSONStore {
	return &JSONStore{
		path: configPath,
		lock: flock.New(configPath + ".lock"),
	}
}

func (s *JSONStore) Init() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock storage: %w", err)
	}
	defer s.lock.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		if _, err := s.read(); err != nil {
			return err
		}
		s.loaded = true
		return nil
	}
	if err := s.write(&Store{
		Version:   1,
		Records:   make(map[string]json.RawMessage),
		Snapshots: make(map[string]*jsonSnapshot),
	}); err != nil {
		return err
	}
	s.loaded = true
	return nil
}

func (s *JSONStore) Load() error {
	err := s.view(func(*Store) error { return nil }, false)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.loaded = true
	s.mu.Unlock()
	return nil
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) GetConfigPath() string {
	return s.path
}

func (s *JSONStore) read() (*Store, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage not initialized, run 'affirm init' first")
		}
		return nil, fmt.Errorf("failed to read storage: %w", err)
	}

	st := &Store{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to parse storage: %w", err)
	}
	if st.Records == nil {
		st.Records = make(map[string]json.RawMessage)
	}
	if st.Snapshots == nil {
		st.Snapshots = make(map[string]*jsonSnapshot)
	}
	return st, nil
}

func (s *JSONStore) write(st *Store) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize storage: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}
	return nil
}

// view runs fn on a fresh read of the document under a shared lock. With checkLoaded a store
// that was never opened is refused.
func (s *JSONStore) view(fn func(*Store) error, checkLoaded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if checkLoaded && !s.loaded {
		return fmt.Errorf("storage not loaded")
	}
	if err := s.lock.RLock(); err != nil {
		return fmt.Errorf("failed to lock storage: %w", err)
	}
	defer s.lock.Unlock()

	st, err := s.read()
	if err != nil {
		return err
	}
	return fn(st)
}

// update is a read-modify-write of the document under an exclusive lock. Nothing is written
// when fn fails.
func (s *JSONStore) update(fn func(*Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return fmt.Errorf("storage not loaded")
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock storage: %w", err)
	}
	defer s.lock.Unlock()

	st, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	return s.write(st)
}

func (s *JSONStore) GetRecord(key string) ([]byte, bool, error) {
	var raw json.RawMessage
	var ok bool
	err := s.view(func(st *Store) error {
		raw, ok = st.Records[key]
		return nil
	}, true)
	if err != nil || !ok {
		return nil, false, err
	}
	return []byte(raw), true, nil
}

func (s *JSONStore) PutRecord(key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("record %s is not valid JSON", key)
	}
	return s.update(func(st *Store) error {
		st.Records[key] = json.RawMessage(value)
		return nil
	})
}

func (s *JSONStore) DeleteRecord(key string) error {
	return s.update(func(st *Store) error {
		delete(st.Records, key)
		return nil
	})
}

func (s *JSONStore) SnapshotNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.view(func(st *Store) error {
		names = make([]string, 0, len(st.Snapshots))
		for name := range st.Snapshots {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			return st.Snapshots[names[i]].CreatedAt.Before(st.Snapshots[names[j]].CreatedAt)
		})
		return nil
	}, true)
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (s *JSONStore) PutSnapshot(ctx context.Context, name string, entries []models.CachedResponse) error {
	snap := &jsonSnapshot{CreatedAt: time.Now(), Entries: make(map[string]models.CachedResponse, len(entries))}
	for _, e := range entries {
		snap.Entries[e.Key] = e
	}
	return s.update(func(st *Store) error {
		st.Snapshots[name] = snap
		return nil
	})
}

func (s *JSONStore) PutEntry(ctx context.Context, name string, entry models.CachedResponse) error {
	return s.update(func(st *Store) error {
		snap, ok := st.Snapshots[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
		if snap.Entries == nil {
			snap.Entries = make(map[string]models.CachedResponse)
		}
		snap.Entries[entry.Key] = entry
		return nil
	})
}

func (s *JSONStore) GetEntry(ctx context.Context, name, key string) (models.CachedResponse, bool, error) {
	var entry models.CachedResponse
	var ok bool
	err := s.view(func(st *Store) error {
		if snap, found := st.Snapshots[name]; found {
			entry, ok = snap.Entries[key]
		}
		return nil
	}, true)
	return entry, ok, err
}

func (s *JSONStore) DeleteSnapshot(ctx context.Context, name string) error {
	return s.update(func(st *Store) error {
		delete(st.Snapshots, name)
		return nil
	})
}
