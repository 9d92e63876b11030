package bulkread

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-operator/internal/console"
	"github.com/nerrad567/gray-logic-operator/internal/operation"
	"github.com/nerrad567/gray-logic-operator/internal/retry"
	"github.com/nerrad567/gray-logic-operator/internal/telemetry"
)

// DefaultWorkers is the worker count used when ReaderOptions.Workers is zero.
const DefaultWorkers = 4

const instrumentationScope = "graylogic-operator/bulkread"

// Session is a console session the reader owns and closes.
// *browser.Session implements it.
type Session interface {
	console.Session
	Close() error
}

// Opener opens a fresh console session for one worker.
type Opener func(ctx context.Context) (Session, error)

// Retrier runs one request with retries. *retry.Engine implements it.
type Retrier interface {
	Run(ctx context.Context, sess console.Session, req operation.Request, policy retry.Policy) operation.Outcome
}

// Logger is the logging interface used by this package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	// Workers is the number of parallel sessions. Default: DefaultWorkers.
	Workers int

	// Policy is the retry policy for each read. Default: retry.DefaultPolicy().
	Policy *retry.Policy

	// Now stamps snapshots. Default: time.Now().UTC().
	Now func() time.Time

	Logger Logger
}

// Reader reads many points in parallel.
type Reader struct {
	open    Opener
	retrier Retrier
	workers int
	policy  retry.Policy
	now     func() time.Time
	logger  Logger

	tracer trace.Tracer
	reads  metric.Int64Counter
}

// NewReader creates a Reader.
func NewReader(open Opener, retrier Retrier, opts ReaderOptions) *Reader {
	r := &Reader{
		open:    open,
		retrier: retrier,
		workers: opts.Workers,
		policy:  retry.DefaultPolicy(),
		now:     opts.Now,
		logger:  opts.Logger,
		tracer:  telemetry.Tracer(instrumentationScope),
	}
	if opts.Policy != nil {
		r.policy = *opts.Policy
	}
	if r.workers <= 0 {
		r.workers = DefaultWorkers
	}
	if r.now == nil {
		r.now = func() time.Time { return time.Now().UTC() }
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	r.reads, _ = telemetry.Meter(instrumentationScope).Int64Counter("operator.bulkread.points", //nolint:errcheck // no-op counter on failure
		metric.WithDescription("Points read by the bulk reader, per result"))
	return r
}

// ReadAll reads every point and returns the snapshot in point order.
//
// A point that cannot be read appears with Success false and its error; it
// never fails the whole read. ReadAll returns an error only for an empty
// point list, when no worker could open a session, or when ctx is cancelled.
// In the last two cases the partial snapshot is still returned.
func (r *Reader) ReadAll(ctx context.Context, points []Point) (Snapshot, error) {
	ctx, span := r.tracer.Start(ctx, "bulkread.read_all",
		trace.WithAttributes(attribute.Int("operator.points", len(points))))
	defer span.End()

	snap, err := r.readAll(ctx, points)

	succeeded := snap.Succeeded()
	failed := len(points) - succeeded
	r.reads.Add(ctx, int64(succeeded), metric.WithAttributes(attribute.String("result", "success")))
	r.reads.Add(ctx, int64(failed), metric.WithAttributes(attribute.String("result", "failure")))
	span.SetAttributes(attribute.Int("operator.points.succeeded", succeeded))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return snap, err
}

func (r *Reader) readAll(ctx context.Context, points []Point) (Snapshot, error) {
	snap := Snapshot{Timestamp: r.now(), Points: make([]PointReading, len(points))}
	if len(points) == 0 {
		return snap, ErrNoPoints
	}

	jobs := make(chan int, len(points))
	for i := range points {
		jobs <- i
	}
	close(jobs)

	done := make([]bool, len(points))
	workers := min(r.workers, len(points))

	var (
		mu       sync.Mutex
		openErrs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	for w := range workers {
		g.Go(func() error {
			sess, err := r.open(gctx)
			if err != nil {
				r.logger.Warn("bulk read worker could not open session", "worker", w, "error", err)
				mu.Lock()
				openErrs = append(openErrs, err)
				mu.Unlock()
				return nil
			}
			defer func() {
				if cerr := sess.Close(); cerr != nil {
					r.logger.Warn("closing bulk read session", "worker", w, "error", cerr)
				}
			}()

			for i := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				snap.Points[i] = r.readPoint(gctx, sess, points[i])
				done[i] = true
			}
			return nil
		})
	}
	waitErr := g.Wait()

	for i, p := range points {
		if !done[i] {
			snap.Points[i] = PointReading{Point: p, Error: "not read: no console session available"}
		}
	}
	snap.computeAverages()

	switch {
	case waitErr != nil:
		return snap, waitErr
	case ctx.Err() != nil:
		return snap, ctx.Err()
	case len(openErrs) == workers:
		return snap, fmt.Errorf("%w: %w", ErrNoSession, errors.Join(openErrs...))
	}

	r.logger.Info("bulk read complete",
		"points", len(points),
		"succeeded", snap.Succeeded(),
		"workers", workers,
	)
	return snap, nil
}

// readPoint reads one point through the retrier.
func (r *Reader) readPoint(ctx context.Context, sess console.Session, p Point) PointReading {
	reading := PointReading{Point: p}

	req, err := operation.NewRequest(p.Name, operation.KindRead, nil, false)
	if err != nil {
		reading.Error = err.Error()
		return reading
	}

	out := r.retrier.Run(ctx, sess, req, r.policy)
	reading.Attempt = out.Attempt
	reading.Timestamp = out.Timestamp
	if !out.Success || out.ObservedValue == nil {
		reading.Error = out.Message
		return reading
	}
	reading.Success = true
	reading.Value = operation.Float(*out.ObservedValue)
	return reading
}
