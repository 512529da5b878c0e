package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// stateFileName holds the processed-ID set between runs
const stateFileName = "processed.json"

// State is the opaque processed-ID set backing incremental mode. It is
// best-effort: a missing or corrupt file starts empty.
type State struct {
	mu     sync.Mutex
	path   string
	hashes map[string]bool
}

// LoadState reads the processed-ID set from the output directory
func LoadState(dir string) *State {
	s := &State{
		path:   filepath.Join(dir, stateFileName),
		hashes: make(map[string]bool),
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return s
	}

	var hashes []string
	if err := json.Unmarshal(data, &hashes); err != nil {
		return s
	}
	for _, h := range hashes {
		s.hashes[h] = true
	}
	return s
}

// Contains reports whether a content hash was processed in a prior run
func (s *State) Contains(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hashes[hash]
}

// Add marks a content hash as processed
func (s *State) Add(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[hash] = true
}

// Len returns the number of stored hashes
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hashes)
}

// Save writes the set back to disk
func (s *State) Save() error {
	s.mu.Lock()
	hashes := make([]string, 0, len(s.hashes))
	for h := range s.hashes {
		hashes = append(hashes, h)
	}
	s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.Marshal(hashes)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
