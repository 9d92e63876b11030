package console

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nerrad567/gray-logic-operator/internal/operation"
)

// DefaultStepTimeout bounds each state when ExecutorOptions.StepTimeout is zero.
const DefaultStepTimeout = 30 * time.Second

// verifyTolerance is the largest difference between the forced and the
// observed value that still counts as a match.
const verifyTolerance = 1e-6

// state is one step of the operation workflow.
type state int

const (
	stateLocate state = iota
	stateOpenDialog
	stateAct
	stateConfirm
	stateVerify
	stateDone
	stateFailed
)

// String implements fmt.Stringer.
func (s state) String() string {
	switch s {
	case stateLocate:
		return "locate"
	case stateOpenDialog:
		return "open_dialog"
	case stateAct:
		return "act"
	case stateConfirm:
		return "confirm"
	case stateVerify:
		return "verify"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// StepTimeout bounds every state. Default: DefaultStepTimeout.
	StepTimeout time.Duration

	// Now returns the outcome timestamp. Default: time.Now().UTC().
	Now func() time.Time

	// Logger receives state transitions at debug level. May be nil.
	Logger Logger
}

// Executor runs one attempt of an operation against a Session.
//
// Thread Safety: Executor holds no per-run state and may be shared, but the
// Session passed to Execute must not be used concurrently.
type Executor struct {
	stepTimeout time.Duration
	now         func() time.Time
	logger      Logger
}

// NewExecutor creates an Executor.
func NewExecutor(opts ExecutorOptions) *Executor {
	e := &Executor{
		stepTimeout: opts.StepTimeout,
		now:         opts.Now,
		logger:      opts.Logger,
	}
	if e.stepTimeout <= 0 {
		e.stepTimeout = DefaultStepTimeout
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	if e.logger == nil {
		e.logger = noopLogger{}
	}
	return e
}

// run carries the data produced while walking the state machine.
type run struct {
	sess     Session
	req      operation.Request
	resolved string
	observed *float64
	message  string
	kind     operation.FailureKind
	detail   string
}

// fail moves the run to the Failed state with the given kind.
func (r *run) fail(kind operation.FailureKind, format string, args ...any) state {
	r.kind = kind
	r.detail = fmt.Sprintf(format, args...)
	return stateFailed
}

// Execute performs a single attempt of req. It never retries and never
// returns an error: every failure is reported as an unsuccessful Outcome
// with the failure kind tagged in its message.
func (e *Executor) Execute(ctx context.Context, sess Session, req operation.Request) operation.Outcome {
	if err := req.Validate(); err != nil {
		return operation.Failed(req, operation.FailureConfig, err.Error(), e.now())
	}

	r := &run{sess: sess, req: req}
	st := stateLocate
	for st != stateDone && st != stateFailed {
		next := e.step(ctx, r, st)
		e.logger.Debug("operation state transition",
			"point", req.Point.String(),
			"kind", string(req.Kind),
			"from", st.String(),
			"to", next.String(),
		)
		st = next
	}

	if st == stateFailed {
		return operation.Failed(req, r.kind, r.detail, e.now())
	}
	return operation.Succeeded(req, r.message, r.observed, e.now())
}

// step runs one state and returns the next.
func (e *Executor) step(ctx context.Context, r *run, st state) state {
	if err := ctx.Err(); err != nil {
		return r.fail(operation.FailureSession, "%s: %v", st, err)
	}

	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	switch st {
	case stateLocate:
		return e.locate(stepCtx, r)
	case stateOpenDialog:
		return e.openDialog(stepCtx, r)
	case stateAct:
		return e.act(stepCtx, r)
	case stateConfirm:
		return e.confirm(stepCtx, r)
	case stateVerify:
		return e.verify(stepCtx, r)
	default:
		return r.fail(operation.FailureSession, "unexpected state %s", st)
	}
}

// locate resolves the point by canonical identifier, then by short name.
func (e *Executor) locate(ctx context.Context, r *run) state {
	if err := r.sess.Home(ctx); err != nil {
		return r.fail(operation.FailureSession, "navigating home: %v", err)
	}

	candidates := r.req.Point.Candidates()
	for _, name := range candidates {
		found, err := r.sess.Locate(ctx, name)
		if err != nil {
			return r.fail(operation.FailureSession, "locating %q: %v", name, err)
		}
		if found {
			r.resolved = name
			if name != r.req.Point.String() {
				e.logger.Info("point resolved by short name",
					"point", r.req.Point.String(),
					"short_name", name,
				)
			}
			return stateOpenDialog
		}
	}
	return r.fail(operation.FailureNotFound, "point %s not found (tried %v)", r.req.Point, candidates)
}

func (e *Executor) openDialog(ctx context.Context, r *run) state {
	if err := r.sess.OpenDialog(ctx, r.resolved); err != nil {
		if errors.Is(err, ErrWrongPoint) {
			e.dismiss(ctx, r)
			return r.fail(operation.FailureNotFound, "dialog for %s: %v", r.resolved, err)
		}
		if isTimeout(err) {
			return r.fail(operation.FailureDialogTimeout, "dialog for %s did not appear: %v", r.resolved, err)
		}
		return r.fail(operation.FailureSession, "opening dialog for %s: %v", r.resolved, err)
	}
	return stateAct
}

func (e *Executor) act(ctx context.Context, r *run) state {
	switch r.req.Kind {
	case operation.KindRead:
		text, err := r.sess.ReadValue(ctx)
		if err != nil {
			return r.fail(operation.FailureSession, "reading value: %v", err)
		}
		v, err := operation.ParseValue(text)
		if err != nil {
			return r.fail(operation.FailureSession, "unreadable value: %v", err)
		}
		r.observed = operation.Float(v)

	case operation.KindForce:
		value := operation.FormatValue(*r.req.Value)
		if err := r.sess.EnterValue(ctx, value); err != nil {
			if errors.Is(err, ErrNoInput) {
				return r.fail(operation.FailureInputRejected, "value %s: %v", value, err)
			}
			return r.fail(operation.FailureSession, "entering value %s: %v", value, err)
		}

	case operation.KindUnforce:
		if err := r.sess.Release(ctx); err != nil {
			return r.fail(operation.FailureSession, "releasing force: %v", err)
		}
	}
	return stateConfirm
}

func (e *Executor) confirm(ctx context.Context, r *run) state {
	if r.req.Kind == operation.KindRead {
		if err := r.sess.Dismiss(ctx); err != nil {
			return r.closeFailure(err)
		}
		r.message = "value read"
		return stateDone
	}

	if r.req.DryRun {
		canErr := r.sess.CanConfirm(ctx)
		// Nothing is committed; closing the dialog is housekeeping only.
		e.dismiss(ctx, r)
		if errors.Is(canErr, ErrCannotConfirm) {
			return r.fail(operation.FailureInputRejected, "dry-run: %v", canErr)
		}
		if canErr != nil {
			return r.fail(operation.FailureSession, "dry-run: checking confirm: %v", canErr)
		}
		r.message = "dry-run: stopped before confirm, no change committed"
		return stateDone
	}

	if err := r.sess.Confirm(ctx); err != nil {
		return r.closeFailure(err)
	}
	return stateVerify
}

// dismiss closes a dialog that will not be committed. A failure is only logged.
func (e *Executor) dismiss(ctx context.Context, r *run) {
	if err := r.sess.Dismiss(ctx); err != nil {
		e.logger.Warn("dialog dismiss failed", "point", r.req.Point.String(), "error", err)
	}
}

// closeFailure classifies an error from Confirm or Dismiss.
func (r *run) closeFailure(err error) state {
	if isTimeout(err) {
		return r.fail(operation.FailureConfirmTimeout, "dialog did not close: %v", err)
	}
	return r.fail(operation.FailureSession, "closing dialog: %v", err)
}

// verify re-reads the point after a committed change. It never fails the
// run: the console's own confirmation is authoritative.
func (e *Executor) verify(ctx context.Context, r *run) state {
	committed := "force applied"
	if r.req.Kind == operation.KindUnforce {
		committed = "force released"
	}

	observed, err := e.readBack(ctx, r)
	if err != nil {
		r.message = fmt.Sprintf("%s; verification unavailable: %v", committed, err)
		return stateDone
	}
	r.observed = operation.Float(observed)

	switch {
	case r.req.Kind == operation.KindUnforce:
		r.message = fmt.Sprintf("%s; observed %s", committed, operation.FormatValue(observed))
	case math.Abs(observed-*r.req.Value) <= verifyTolerance:
		r.message = fmt.Sprintf("%s; verified %s", committed, operation.FormatValue(observed))
	default:
		r.message = fmt.Sprintf("%s; verification mismatch: observed %s, expected %s",
			committed, operation.FormatValue(observed), operation.FormatValue(*r.req.Value))
	}
	return stateDone
}

func (e *Executor) readBack(ctx context.Context, r *run) (float64, error) {
	found, err := r.sess.Locate(ctx, r.resolved)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("point %s no longer visible", r.resolved)
	}
	if err := r.sess.OpenDialog(ctx, r.resolved); err != nil {
		if errors.Is(err, ErrWrongPoint) {
			e.dismiss(ctx, r)
		}
		return 0, err
	}
	text, err := r.sess.ReadValue(ctx)
	if dismissErr := r.sess.Dismiss(ctx); dismissErr != nil && err == nil {
		err = dismissErr
	}
	if err != nil {
		return 0, err
	}
	return operation.ParseValue(text)
}

// isTimeout reports whether err represents an expired wait.
func isTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
