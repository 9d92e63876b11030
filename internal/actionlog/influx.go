package actionlog

import (
	"context"
	"time"
)

// PointWriter is the subset of influxdb.Client used by InfluxLog.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time)
}

// measurementActions is the InfluxDB measurement for operation attempts.
const measurementActions = "operator_actions"

// InfluxLog writes operation attempts as time series points. Records without
// a point (controller evaluations) are skipped.
type InfluxLog struct {
	w PointWriter
}

// NewInfluxLog creates an InfluxDB sink.
func NewInfluxLog(w PointWriter) *InfluxLog {
	return &InfluxLog{w: w}
}

// Append implements Log. Writes are batched by the client; errors surface
// through the client's error callback.
func (l *InfluxLog) Append(_ context.Context, rec Record) error {
	if rec.Point == "" {
		return nil
	}
	rec.normalise()

	tags := map[string]string{
		"point":  rec.Point,
		"action": rec.Action,
	}
	if rec.Source != "" {
		tags["source"] = rec.Source
	}
	fields := map[string]interface{}{
		"success": rec.Success,
		"attempt": rec.Attempt,
		"dry_run": rec.DryRun,
	}
	if rec.Value != nil {
		fields["value"] = *rec.Value
	}
	if rec.ObservedValue != nil {
		fields["observed_value"] = *rec.ObservedValue
	}

	l.w.WritePointWithTime(measurementActions, tags, fields, rec.Timestamp)
	return nil
}
