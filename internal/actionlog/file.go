package actionlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultFilePath is the JSON Lines history file used when none is configured.
const DefaultFilePath = "logs/operator_actions.jsonl"

// FileLog appends records as JSON Lines.
type FileLog struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// OpenFile opens (or creates) a JSON Lines history file for appending.
func OpenFile(path string) (*FileLog, error) {
	if path == "" {
		return nil, ErrNoPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating action log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("opening action log: %w", err)
	}
	return &FileLog{f: f, path: path}, nil
}

// Path returns the file path.
func (l *FileLog) Path() string { return l.path }

// Append writes one record as a single line.
func (l *FileLog) Append(_ context.Context, rec Record) error {
	rec.normalise()
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding action record: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return ErrClosed
	}
	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("writing action record: %w", err)
	}
	return nil
}

// Close closes the file.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
