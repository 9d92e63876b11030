package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-operator/internal/actionlog"
	"github.com/nerrad567/gray-logic-operator/internal/console"
	"github.com/nerrad567/gray-logic-operator/internal/operation"
	"github.com/nerrad567/gray-logic-operator/internal/retry"
)

// State is the control loop's current activity.
type State string

const (
	StateIdle       State = "idle"
	StateEvaluating State = "evaluating"
	StateActing     State = "acting"
	StateSleeping   State = "sleeping"
)

// Logger is the logging interface used by the controller.
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

// ReadingRecorder stores sensed readings. *influxdb.Client implements it.
type ReadingRecorder interface {
	WriteReading(metric string, value float64, ts time.Time)
}

// Options configures a Controller. Only Source is required for Run.
type Options struct {
	Source Source

	// Log receives auto_evaluate and auto_suppressed records.
	Log actionlog.Log

	// Recorder, when set, receives every sensed reading.
	Recorder ReadingRecorder

	// Overrides are applied to the initial config and to every reload.
	Overrides Overrides

	Logger Logger

	// Now returns the cycle timestamp. Default: time.Now().UTC().
	Now func() time.Time

	// Sleep waits between cycles. Default: retry.Sleep.
	Sleep retry.SleepFunc
}

// Controller runs the rule loop on one console session.
//
// Thread Safety: Run must be called from one goroutine. Reload and State
// may be called concurrently with Run.
type Controller struct {
	cfg       atomic.Pointer[Config]
	retrier   Retrier
	source    Source
	log       actionlog.Log
	recorder  ReadingRecorder
	overrides Overrides
	logger    Logger
	now       func() time.Time
	sleep     retry.SleepFunc

	mu    sync.RWMutex
	state State
}

// New creates a controller. cfg must have passed Validate.
func New(cfg *Config, retrier Retrier, opts Options) *Controller {
	c := &Controller{
		retrier:   retrier,
		source:    opts.Source,
		log:       opts.Log,
		recorder:  opts.Recorder,
		overrides: opts.Overrides,
		logger:    opts.Logger,
		now:       opts.Now,
		sleep:     opts.Sleep,
		state:     StateIdle,
	}
	if c.log == nil {
		c.log = actionlog.Discard
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	if c.sleep == nil {
		c.sleep = retry.Sleep
	}
	c.cfg.Store(c.overrides.Apply(cfg))
	return c
}

// Config returns the configuration in effect, overrides applied.
func (c *Controller) Config() *Config {
	return c.cfg.Load()
}

// Reload swaps in a validated configuration. It takes effect at the next
// cycle; the cooldown table is kept.
func (c *Controller) Reload(cfg *Config) {
	c.cfg.Store(c.overrides.Apply(cfg))
	c.logger.Info("controller config reloaded", "rules", len(cfg.Rules))
}

// State returns the loop's current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// StepResult describes one evaluated cycle.
type StepResult struct {
	Candidates []Candidate

	// Skipped holds fired rules that produced no valid request.
	Skipped []SkippedRule

	Admitted   []Candidate
	Suppressed []Candidate

	// Outcomes holds one outcome per submitted candidate, in order.
	Outcomes []operation.Outcome

	// Interrupted is set when a stop signal skipped remaining submissions.
	Interrupted bool
}

// Step evaluates readings at the cycle time now and submits the admitted
// candidates in order. A cooldown entry is set to now after each successful
// submission. A started submission always runs to completion; the stop
// signal is checked before each one.
func (c *Controller) Step(ctx context.Context, sess console.Session, now time.Time, readings []Reading, table *CooldownTable) StepResult {
	cfg := c.cfg.Load()
	c.setState(StateEvaluating)

	var res StepResult
	res.Candidates, res.Skipped = Evaluate(cfg.Rules, readings, cfg.DryRun)
	for _, sk := range res.Skipped {
		c.logger.Warn("controller rule skipped", "rule", cfg.Rules[sk.Rule].label(sk.Rule), "reason", sk.Reason)
	}
	for _, cand := range res.Candidates {
		point := cand.Request.Point.String()
		if remaining := table.Remaining(point, now, cfg.Cooldown()); remaining > 0 {
			res.Suppressed = append(res.Suppressed, cand)
			c.suppressed(ctx, now, cand, remaining)
			continue
		}
		res.Admitted = append(res.Admitted, cand)
	}
	c.evaluated(ctx, now, cfg, readings, res)

	if len(res.Admitted) == 0 {
		return res
	}

	c.setState(StateActing)
	submitCtx := context.WithoutCancel(ctx)
	for i, cand := range res.Admitted {
		if ctx.Err() != nil {
			c.logger.Info("stop requested, skipping remaining candidates", "skipped", len(res.Admitted)-i)
			res.Interrupted = true
			break
		}
		out := c.retrier.Run(submitCtx, sess, cand.Request, cfg.Policy())
		res.Outcomes = append(res.Outcomes, out)
		if !out.Success {
			c.logger.Error("controller action failed",
				"rule", cfg.Rules[cand.Rule].label(cand.Rule),
				"request", cand.Request.String(),
				"attempt", out.Attempt,
				"message", out.Message,
			)
			continue
		}
		table.Mark(cand.Request.Point.String(), now)
		c.logger.Info("controller action submitted",
			"rule", cfg.Rules[cand.Rule].label(cand.Rule),
			"request", cand.Request.String(),
			"message", out.Message,
		)
	}
	return res
}

// Run executes cycles until ctx is done, or one cycle when once is set.
//
// Operation failures never end the loop. In single-pass mode the only
// error is a cycle whose sensing failed outright.
func (c *Controller) Run(ctx context.Context, sess console.Session, once bool) error {
	if c.source == nil {
		return fmt.Errorf("controller: no sensor source configured")
	}
	defer c.setState(StateIdle)

	table := NewCooldownTable()
	for cycle := 1; ; cycle++ {
		if ctx.Err() != nil {
			c.logger.Info("controller stopped", "cycles", cycle-1)
			return nil
		}

		c.setState(StateEvaluating)
		readings, err := c.source.Sense(ctx, sess)
		now := c.now()
		switch {
		case err != nil && ctx.Err() != nil:
			c.logger.Info("controller stopped during sensing", "cycles", cycle-1)
			return nil
		case err != nil:
			c.logger.Error("sensing failed", "cycle", cycle, "error", err)
			c.append(ctx, actionlog.Record{
				Timestamp: now,
				Action:    actionlog.ActionAutoEvaluate,
				Source:    actionlog.SourceController,
				Success:   false,
				Message:   "sensing failed: " + err.Error(),
			})
			if once {
				return fmt.Errorf("sensing: %w", err)
			}
		default:
			c.record(readings)
			res := c.Step(ctx, sess, now, readings, table)
			c.logger.Info("controller cycle complete",
				"cycle", cycle,
				"readings", len(readings),
				"candidates", len(res.Candidates),
				"suppressed", len(res.Suppressed),
				"submitted", len(res.Outcomes),
			)
		}

		if once {
			return nil
		}

		cfg := c.cfg.Load()
		c.setState(StateSleeping)
		if err := c.sleep(ctx, cfg.Cycle()); err != nil {
			c.logger.Info("controller stopped", "cycles", cycle)
			return nil
		}
	}
}

func (c *Controller) record(readings []Reading) {
	if c.recorder == nil {
		return
	}
	for _, r := range readings {
		c.recorder.WriteReading(r.Metric, r.Value, r.Timestamp)
	}
}

// evaluated appends the cycle's auto_evaluate record.
func (c *Controller) evaluated(ctx context.Context, now time.Time, cfg *Config, readings []Reading, res StepResult) {
	values := make(map[string]float64, len(readings))
	for _, r := range readings {
		values[r.Metric] = r.Value
	}
	requests := make([]string, 0, len(res.Candidates))
	for _, cand := range res.Candidates {
		requests = append(requests, cand.Request.String())
	}
	details := map[string]any{
		"readings":   values,
		"candidates": requests,
		"admitted":   len(res.Admitted),
		"suppressed": len(res.Suppressed),
	}
	if len(res.Skipped) > 0 {
		skipped := make(map[string]string, len(res.Skipped))
		for _, sk := range res.Skipped {
			skipped[cfg.Rules[sk.Rule].label(sk.Rule)] = sk.Reason
		}
		details["skipped"] = skipped
	}
	c.append(ctx, actionlog.Record{
		Timestamp: now,
		Action:    actionlog.ActionAutoEvaluate,
		Source:    actionlog.SourceController,
		DryRun:    cfg.DryRun,
		Success:   true,
		Message: fmt.Sprintf("evaluation complete: %d candidates, %d suppressed",
			len(res.Candidates), len(res.Suppressed)),
		Details: details,
	})
}

// suppressed appends the auto_suppressed record for a cooled-down candidate.
func (c *Controller) suppressed(ctx context.Context, now time.Time, cand Candidate, remaining time.Duration) {
	c.logger.Debug("candidate suppressed by cooldown",
		"request", cand.Request.String(),
		"remaining", remaining,
	)
	rec := actionlog.Record{
		Timestamp: now,
		Action:    actionlog.ActionAutoSuppressed,
		Source:    actionlog.SourceController,
		Point:     cand.Request.Point.String(),
		DryRun:    cand.Request.DryRun,
		Success:   true,
		Message:   fmt.Sprintf("cooldown active, %s remaining", remaining.Round(time.Second)),
		Details:   map[string]any{"kind": string(cand.Request.Kind)},
	}
	if cand.Request.Value != nil {
		rec.Value = operation.Float(*cand.Request.Value)
	}
	c.append(ctx, rec)
}

func (c *Controller) append(ctx context.Context, rec actionlog.Record) {
	if err := c.log.Append(context.WithoutCancel(ctx), rec); err != nil {
		c.logger.Warn("appending controller record failed", "action", rec.Action, "error", err)
	}
}
