package bulkread

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-operator/internal/actionlog"
	"github.com/nerrad567/gray-logic-operator/internal/retry"
)

// DefaultInterval separates scheduler cycles when none is configured.
const DefaultInterval = time.Hour

// MetricWriter stores point values and category averages.
// *influxdb.Client implements it.
type MetricWriter interface {
	WritePointValue(point, category, unit string, value float64, ts time.Time)
	WriteCategoryAverage(category string, average float64, samples int, ts time.Time)
}

// SnapshotSink receives every successful snapshot. *SnapshotFile implements it.
type SnapshotSink interface {
	Append(snap Snapshot) error
}

// SchedulerOptions configures a Scheduler. All fields are optional.
type SchedulerOptions struct {
	// Interval separates the start of one cycle from the next. Default: DefaultInterval.
	Interval time.Duration

	Snapshots SnapshotSink
	Metrics   MetricWriter
	Log       actionlog.Log
	Logger    Logger

	// Sleep waits between cycles. Default: retry.Sleep.
	Sleep retry.SleepFunc
}

// Scheduler repeats a bulk read on a fixed interval.
type Scheduler struct {
	reader    *Reader
	points    []Point
	interval  time.Duration
	snapshots SnapshotSink
	metrics   MetricWriter
	log       actionlog.Log
	logger    Logger
	sleep     retry.SleepFunc
}

// NewScheduler creates a scheduler reading points with reader.
func NewScheduler(reader *Reader, points []Point, opts SchedulerOptions) *Scheduler {
	s := &Scheduler{
		reader:    reader,
		points:    points,
		interval:  opts.Interval,
		snapshots: opts.Snapshots,
		metrics:   opts.Metrics,
		log:       opts.Log,
		logger:    opts.Logger,
		sleep:     opts.Sleep,
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.log == nil {
		s.log = actionlog.Discard
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.sleep == nil {
		s.sleep = retry.Sleep
	}
	return s
}

// Run executes cycles until ctx is cancelled or maxCycles cycles have run
// (zero means no limit). A failed cycle is logged and does not stop the
// loop. Cancellation returns nil.
func (s *Scheduler) Run(ctx context.Context, maxCycles int) error {
	s.logger.Info("bulk read scheduler started",
		"points", len(s.points),
		"interval", s.interval.String(),
	)

	for cycle := 1; ; cycle++ {
		if ctx.Err() != nil {
			break
		}

		snap, err := s.Cycle(ctx, cycle)
		if err != nil {
			s.logger.Error("bulk read cycle failed", "cycle", cycle, "error", err)
		} else {
			s.logger.Info("bulk read cycle complete",
				"cycle", cycle,
				"succeeded", snap.Succeeded(),
				"points", len(snap.Points),
			)
		}

		if maxCycles > 0 && cycle >= maxCycles {
			break
		}
		if err := s.sleep(ctx, s.interval); err != nil {
			break
		}
	}

	s.logger.Info("bulk read scheduler stopped")
	return nil
}

// Cycle performs one bulk read and stores the result.
func (s *Scheduler) Cycle(ctx context.Context, cycle int) (Snapshot, error) {
	snap, err := s.reader.ReadAll(ctx, s.points)
	snap.Cycle = cycle
	if err != nil {
		s.record(ctx, snap, err)
		return snap, fmt.Errorf("reading points: %w", err)
	}

	if s.snapshots != nil {
		if err := s.snapshots.Append(snap); err != nil {
			s.record(ctx, snap, err)
			return snap, err
		}
	}
	s.writeMetrics(snap)
	s.record(ctx, snap, nil)
	return snap, nil
}

func (s *Scheduler) writeMetrics(snap Snapshot) {
	if s.metrics == nil {
		return
	}
	for _, p := range snap.Points {
		if p.Success && p.Value != nil {
			s.metrics.WritePointValue(p.Name, p.Category, p.Unit, *p.Value, snap.Timestamp)
		}
	}
	for category, avg := range snap.Averages {
		s.metrics.WriteCategoryAverage(category, avg.Value, avg.Samples, snap.Timestamp)
	}
}

// record appends the bulk_read history entry for one cycle.
func (s *Scheduler) record(ctx context.Context, snap Snapshot, cycleErr error) {
	rec := actionlog.Record{
		Timestamp: snap.Timestamp,
		Action:    actionlog.ActionBulkRead,
		Source:    actionlog.SourceScheduler,
		Success:   cycleErr == nil && snap.Succeeded() == len(snap.Points),
		Message:   fmt.Sprintf("read %d/%d points", snap.Succeeded(), len(snap.Points)),
		Details:   map[string]any{"cycle": snap.Cycle},
	}
	if cycleErr != nil {
		rec.Message = fmt.Sprintf("%s: %v", rec.Message, cycleErr)
	}
	if len(snap.Averages) > 0 {
		averages := make(map[string]any, len(snap.Averages))
		for c, avg := range snap.Averages {
			averages[c] = avg.Value
		}
		rec.Details["averages"] = averages
	}

	if err := s.log.Append(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("appending bulk read record", "cycle", snap.Cycle, "error", err)
	}
}
