package actionlog

import (
	"context"
	"errors"
	"sync"
)

// Log appends action records.
type Log interface {
	Append(ctx context.Context, rec Record) error
}

// Discard is a Log that drops every record.
var Discard Log = discard{}

type discard struct{}

func (discard) Append(context.Context, Record) error { return nil }

// multi fans a record out to several sinks.
type multi []Log

// Multi returns a Log that appends every record to all sinks. The record ID
// and timestamp are assigned once so every sink stores the same entry. Sink
// failures are joined; a failing sink never stops the others.
func Multi(sinks ...Log) Log {
	flat := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if m, ok := s.(multi); ok {
			flat = append(flat, m...)
			continue
		}
		flat = append(flat, s)
	}
	return flat
}

func (m multi) Append(ctx context.Context, rec Record) error {
	rec.normalise()
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Memory keeps records in memory. It backs tests and dry local runs.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

// Append implements Log.
func (m *Memory) Append(_ context.Context, rec Record) error {
	rec.normalise()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Records returns a copy of the appended records.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}
