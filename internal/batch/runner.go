package batch

import (
	"context"

	"github.com/nerrad567/gray-logic-operator/internal/console"
	"github.com/nerrad567/gray-logic-operator/internal/operation"
	"github.com/nerrad567/gray-logic-operator/internal/retry"
)

// Retrier runs one request with retries. *retry.Engine implements it.
type Retrier interface {
	Run(ctx context.Context, sess console.Session, req operation.Request, policy retry.Policy) operation.Outcome
}

// Logger is the logging interface used by Runner.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Runner executes batches sequentially on one session.
type Runner struct {
	retrier Retrier
	logger  Logger
}

// NewRunner creates a Runner. logger may be nil.
func NewRunner(retrier Retrier, logger Logger) *Runner {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Runner{retrier: retrier, logger: logger}
}

// Run executes every request of spec in order and returns one outcome per
// request, in request order. An empty batch returns an empty slice.
func (r *Runner) Run(ctx context.Context, sess console.Session, spec Spec) []operation.Outcome {
	outcomes := make([]operation.Outcome, 0, len(spec.Requests))
	for i, req := range spec.Requests {
		out := r.retrier.Run(ctx, sess, req, spec.Policy)
		outcomes = append(outcomes, out)

		if out.Success {
			r.logger.Info("batch operation succeeded",
				"index", i,
				"point", req.Point.String(),
				"kind", string(req.Kind),
				"attempt", out.Attempt,
				"message", out.Message,
			)
			continue
		}
		r.logger.Error("batch operation failed",
			"index", i,
			"point", req.Point.String(),
			"kind", string(req.Kind),
			"attempt", out.Attempt,
			"message", out.Message,
			"screenshot", out.ScreenshotRef,
		)
	}
	return outcomes
}

// Summary counts batch results.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Summarise counts the outcomes of a batch.
func Summarise(outcomes []operation.Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
