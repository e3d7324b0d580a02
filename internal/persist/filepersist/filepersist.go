// Package filepersist implements persist.Store as one JSON file per run
// under a base directory, for local/single-process deployments.
package filepersist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/workflowforge/engine/internal/persist"
)

// Store writes each run's checkpoint to "<dir>/<runID>.json".
type Store struct {
	dir string
	mu  sync.Mutex
}

// New ensures dir exists and returns a Store rooted there.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filepersist: failed to create checkpoint dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(runID string) string {
	return filepath.Join(s.dir, runID+".json")
}

// Save implements persist.Store.
func (s *Store) Save(runID string, a persist.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("filepersist: failed to marshal artifact: %w", err)
	}

	tmp := s.path(runID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("filepersist: failed to write checkpoint for %s: %w", runID, err)
	}
	if err := os.Rename(tmp, s.path(runID)); err != nil {
		return fmt.Errorf("filepersist: failed to finalize checkpoint for %s: %w", runID, err)
	}
	return nil
}

// Load implements persist.Store.
func (s *Store) Load(runID string) (*persist.Artifact, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(runID))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("filepersist: failed to read checkpoint for %s: %w", runID, err)
	}

	var a persist.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, false, fmt.Errorf("filepersist: failed to unmarshal checkpoint for %s: %w", runID, err)
	}
	return &a, true, nil
}

// StaleRunIDs implements sweep.ScanStore by listing every checkpoint file
// whose modification time predates olderThan.
func (s *Store) StaleRunIDs(olderThan time.Duration) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("filepersist: failed to list checkpoint dir %s: %w", s.dir, err)
	}

	cutoff := time.Now().Add(-olderThan)
	var stale []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			stale = append(stale, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	return stale, nil
}
