package jack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Selection state persisted between server runs.
type storedState struct {
	DevsInUse  []string `yaml:"devs_in_use"`
	Aggregated bool     `yaml:"midi_aggregated_mode"`
}

// Store holds the active device set and routing mode.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	state storedState
	path  string
}

// NewStore returns an in-memory store. Aggregated mode is the default.
func NewStore() *Store {
	return &Store{state: storedState{DevsInUse: []string{}, Aggregated: true}}
}

// OpenStore loads the store from path. A missing file yields the defaults;
// every successful Set is written back to path.
func OpenStore(path string) (*Store, error) {
	s := NewStore()
	s.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("parsing state file: %w", err)
	}
	if s.state.DevsInUse == nil {
		s.state.DevsInUse = []string{}
	}
	return s, nil
}

// Get returns a copy of the in-use ids and the aggregated flag.
func (s *Store) Get() ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	devs := make([]string, len(s.state.DevsInUse))
	copy(devs, s.state.DevsInUse)
	return devs, s.state.Aggregated
}

// Set replaces the state and persists it when the store is file backed. On a
// write failure the in-memory state is left unchanged.
func (s *Store) Set(devs []string, aggregated bool) error {
	next := storedState{DevsInUse: make([]string, len(devs)), Aggregated: aggregated}
	copy(next.DevsInUse, devs)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path != "" {
		if err := writeState(s.path, next); err != nil {
			return err
		}
	}
	s.state = next
	return nil
}

func writeState(path string, st storedState) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := writeSynced(tmp, data); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// writeSynced writes data to path and flushes it to disk before returning.
func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
