package bulkread

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultSnapshotPath is the JSON Lines file used when none is configured.
const DefaultSnapshotPath = "logs/point_snapshots.jsonl"

// SnapshotFile appends snapshots as JSON Lines.
type SnapshotFile struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// OpenSnapshotFile opens (or creates) path for appending.
func OpenSnapshotFile(path string) (*SnapshotFile, error) {
	if path == "" {
		return nil, ErrNoPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	return &SnapshotFile{f: f, path: path}, nil
}

// Path returns the file path.
func (s *SnapshotFile) Path() string { return s.path }

// Append writes one snapshot as a single line.
func (s *SnapshotFile) Append(snap Snapshot) error {
	line, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrClosed
	}
	if _, err := s.f.Write(line); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Close closes the file. Safe to call more than once.
func (s *SnapshotFile) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
