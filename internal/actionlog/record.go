package actionlog

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-operator/internal/operation"
)

// Record actions beyond the operation kinds.
const (
	ActionAutoEvaluate   = "auto_evaluate"
	ActionAutoSuppressed = "auto_suppressed"
	ActionBulkRead       = "bulk_read"
)

// Record sources.
const (
	SourceCLI        = "cli"
	SourceBatch      = "batch"
	SourceController = "auto"
	SourceScheduler  = "scheduler"
)

// Record is one entry in the action history.
type Record struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	Action        string         `json:"action"`
	Source        string         `json:"source,omitempty"`
	Point         string         `json:"point,omitempty"`
	Value         *float64       `json:"value,omitempty"`
	DryRun        bool           `json:"dry_run,omitempty"`
	Success       bool           `json:"success"`
	Message       string         `json:"message,omitempty"`
	ObservedValue *float64       `json:"observed_value,omitempty"`
	Attempt       int            `json:"attempt,omitempty"`
	ScreenshotRef string         `json:"screenshot_ref,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

// FromOutcome builds the record for one operation attempt.
func FromOutcome(out operation.Outcome, source string) Record {
	r := Record{
		Timestamp:     out.Timestamp,
		Action:        string(out.Request.Kind),
		Source:        source,
		Point:         out.Request.Point.String(),
		DryRun:        out.Request.DryRun,
		Success:       out.Success,
		Message:       out.Message,
		Attempt:       out.Attempt,
		ScreenshotRef: out.ScreenshotRef,
	}
	if out.Request.Value != nil {
		r.Value = operation.Float(*out.Request.Value)
	}
	if out.ObservedValue != nil {
		r.ObservedValue = operation.Float(*out.ObservedValue)
	}
	if kind := out.FailureKind(); kind != "" {
		r.Details = map[string]any{"failure_kind": string(kind)}
	}
	return r
}

// normalise fills the generated fields of a record.
func (r *Record) normalise() {
	if r.ID == "" {
		r.ID = "act-" + uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
}
