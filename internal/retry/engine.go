package retry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nerrad567/gray-logic-operator/internal/actionlog"
	"github.com/nerrad567/gray-logic-operator/internal/console"
	"github.com/nerrad567/gray-logic-operator/internal/operation"
	"github.com/nerrad567/gray-logic-operator/internal/telemetry"
)

// instrumentationScope names the engine's tracer and meter.
const instrumentationScope = "graylogic-operator/retry"

// captureFailedPrefix marks a diagnostic reference that could not be captured.
const captureFailedPrefix = "capture-failed: "

// ExecuteFunc performs a single attempt of an operation.
type ExecuteFunc func(ctx context.Context, sess console.Session, req operation.Request) operation.Outcome

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Logger is the logging interface used by Engine.
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

// Options configures an Engine. Every field is optional.
type Options struct {
	// Sleep waits between attempts. Default: Sleep.
	Sleep SleepFunc

	// Log receives one record per attempt. Default: actionlog.Discard.
	Log actionlog.Log

	// Source is stamped on every record. Default: actionlog.SourceCLI.
	Source string

	Logger Logger
}

// Engine retries operations with linear backoff.
type Engine struct {
	execute ExecuteFunc
	sleep   SleepFunc
	log     actionlog.Log
	source  string
	logger  Logger

	tracer   trace.Tracer
	attempts metric.Int64Counter
	outcomes metric.Int64Counter
}

// New creates an Engine around execute.
func New(execute ExecuteFunc, opts Options) *Engine {
	e := &Engine{
		execute: execute,
		sleep:   opts.Sleep,
		log:     opts.Log,
		source:  opts.Source,
		logger:  opts.Logger,
		tracer:  telemetry.Tracer(instrumentationScope),
	}
	if e.sleep == nil {
		e.sleep = Sleep
	}
	if e.log == nil {
		e.log = actionlog.Discard
	}
	if e.source == "" {
		e.source = actionlog.SourceCLI
	}
	if e.logger == nil {
		e.logger = noopLogger{}
	}

	meter := telemetry.Meter(instrumentationScope)
	// Instrument creation only fails on invalid names; the no-op fallback keeps Run simple.
	e.attempts, _ = meter.Int64Counter("operator.operation.attempts", //nolint:errcheck // see above
		metric.WithDescription("Operation attempts, per kind and result"))
	e.outcomes, _ = meter.Int64Counter("operator.operation.outcomes", //nolint:errcheck // see above
		metric.WithDescription("Final operation outcomes after retries"))
	return e
}

// WithSource returns a copy of the engine that stamps records with source.
func (e *Engine) WithSource(source string) *Engine {
	c := *e
	c.source = source
	return &c
}

// Run executes req with retries and returns the final outcome.
//
// An invalid policy yields a ConfigError outcome without touching the
// session. Cancellation during a backoff returns the last failed outcome
// without further attempts.
func (e *Engine) Run(ctx context.Context, sess console.Session, req operation.Request, policy Policy) operation.Outcome {
	ctx, span := e.tracer.Start(ctx, "operation."+string(req.Kind),
		trace.WithAttributes(
			attribute.String("operator.point", req.Point.String()),
			attribute.String("operator.kind", string(req.Kind)),
			attribute.Bool("operator.dry_run", req.DryRun),
		),
	)
	defer span.End()

	if err := policy.Validate(); err != nil {
		out := operation.Failed(req, operation.FailureConfig, err.Error(), time.Now().UTC())
		e.record(ctx, out)
		e.finish(ctx, span, out)
		return out
	}

	var out operation.Outcome
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		out = e.execute(ctx, sess, req).WithAttempt(attempt)
		if !out.Success {
			out = out.WithScreenshot(e.capture(ctx, sess, req))
		}
		e.record(ctx, out)

		if out.Success {
			break
		}
		if attempt == policy.MaxAttempts || !out.FailureKind().Retryable() {
			e.logger.Error("operation failed",
				"point", req.Point.String(),
				"kind", string(req.Kind),
				"attempts", attempt,
				"message", out.Message,
			)
			break
		}

		wait := policy.Backoff(attempt)
		e.logger.Warn("operation attempt failed, retrying",
			"point", req.Point.String(),
			"kind", string(req.Kind),
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"backoff", wait,
			"message", out.Message,
		)
		if err := e.sleep(ctx, wait); err != nil {
			e.logger.Info("retry abandoned", "point", req.Point.String(), "error", err)
			break
		}
	}

	e.finish(ctx, span, out)
	return out
}

// capture returns a diagnostic reference for a failed attempt.
func (e *Engine) capture(ctx context.Context, sess console.Session, req operation.Request) string {
	if sess == nil {
		return captureFailedPrefix + "no session"
	}
	ref, err := sess.Screenshot(ctx, req.Point.ShortName())
	if err != nil {
		e.logger.Warn("screenshot capture failed", "point", req.Point.String(), "error", err)
		return captureFailedPrefix + err.Error()
	}
	return ref
}

// record appends one attempt to the action log. Log failures never change
// the outcome. The append outlives cancellation so the final attempt of an
// interrupted run is still recorded.
func (e *Engine) record(ctx context.Context, out operation.Outcome) {
	e.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(out.Request.Kind)),
		attribute.Bool("success", out.Success),
	))
	if err := e.log.Append(context.WithoutCancel(ctx), actionlog.FromOutcome(out, e.source)); err != nil {
		e.logger.Warn("appending action record failed", "point", out.Request.Point.String(), "error", err)
	}
}

func (e *Engine) finish(ctx context.Context, span trace.Span, out operation.Outcome) {
	span.SetAttributes(
		attribute.Int("operator.attempts", out.Attempt),
		attribute.Bool("operator.success", out.Success),
	)
	result := "success"
	if !out.Success {
		result = string(out.FailureKind())
		span.SetStatus(codes.Error, out.Message)
	}
	e.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(out.Request.Kind)),
		attribute.String("result", result),
	))
}
