package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-operator/internal/actionlog"
	"github.com/nerrad567/gray-logic-operator/internal/batch"
	"github.com/nerrad567/gray-logic-operator/internal/bulkread"
	"github.com/nerrad567/gray-logic-operator/internal/controller"
	"github.com/nerrad567/gray-logic-operator/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-operator/internal/operation"
	"github.com/nerrad567/gray-logic-operator/internal/retry"
)

// errOperationsFailed marks a run in which at least one operation failed.
// Its outcomes have already been printed.
var errOperationsFailed = errors.New("one or more operations failed")

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	baseURL    string
	headless   bool
	timeoutMS  int
}

// cli carries what the commands need besides their own flags.
type cli struct {
	flags  globalFlags
	opener sessionOpener
}

// newRootCmd builds the command tree.
func newRootCmd(opener sessionOpener) *cobra.Command {
	c := &cli{opener: opener}

	root := &cobra.Command{
		Use:           "graylogic-operator",
		Short:         "Operate building points through the web console",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&c.flags.configPath, "config", "c", "", "operator config file (default $"+config.EnvConfigPath+" or "+config.DefaultPath+")")
	pf.StringVar(&c.flags.baseURL, "url", "", "console base URL (overrides console.base_url)")
	pf.BoolVar(&c.flags.headless, "headless", true, "run the browser headless (overrides console.headless)")
	pf.IntVar(&c.flags.timeoutMS, "timeout-ms", 0, "per-wait console timeout in milliseconds (overrides console.timeout_ms)")

	root.AddCommand(
		c.loginCmd(),
		c.operationCmd(operation.KindForce, "Force a point to a value"),
		c.operationCmd(operation.KindUnforce, "Release a forced point"),
		c.operationCmd(operation.KindRead, "Read the current value of a point"),
		c.batchCmd(),
		c.autoCmd(),
		c.schedulerCmd(),
		c.historyCmd(),
		c.dbCmd(),
	)
	return root
}

// open builds the app for cmd and applies the global overrides.
func (c *cli) open(cmd *cobra.Command) (*app, error) {
	a, err := newApp(cmd.Context(), c.flags.configPath, c.opener)
	if err != nil {
		a.close()
		return nil, err
	}
	pf := cmd.Flags()
	if pf.Changed("url") {
		a.cfg.Console.BaseURL = c.flags.baseURL
	}
	if pf.Changed("headless") {
		a.cfg.Console.Headless = c.flags.headless
	}
	if pf.Changed("timeout-ms") && c.flags.timeoutMS > 0 {
		a.cfg.Console.TimeoutMS = c.flags.timeoutMS
	}
	return a, nil
}

// retryFlags are the per-run policy overrides.
type retryFlags struct {
	retries int
	backoff float64
}

func (f *retryFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.retries, "retries", retry.DefaultMaxAttempts, "attempts per operation")
	cmd.Flags().Float64Var(&f.backoff, "backoff-seconds", retry.DefaultBackoffBase.Seconds(), "backoff base; the wait after attempt n is n times this")
}

// policy returns the configured policy with any changed flags applied.
func (f *retryFlags) policy(cmd *cobra.Command, a *app) (retry.Policy, error) {
	p := retry.FromConfig(a.cfg.Retry)
	if cmd.Flags().Changed("retries") {
		p.MaxAttempts = f.retries
	}
	if cmd.Flags().Changed("backoff-seconds") {
		p.BackoffBase = time.Duration(f.backoff * float64(time.Second))
	}
	if err := p.Validate(); err != nil {
		return retry.Policy{}, err
	}
	return p, nil
}

func (c *cli) operationCmd(kind operation.Kind, short string) *cobra.Command {
	var (
		point  string
		value  string
		dryRun bool
		rf     retryFlags
	)
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := buildRequest(point, kind, value, dryRun)
			if err != nil {
				return err
			}

			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			policy, err := rf.policy(cmd, a)
			if err != nil {
				return err
			}

			sess, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer closeSession(a, sess)

			out := a.engine(actionlog.SourceCLI).Run(cmd.Context(), sess, req, policy)
			printOutcome(cmd.OutOrStdout(), out)
			if !out.Success {
				return errOperationsFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&point, "point", "p", "", "point identifier, e.g. 360.005-JV40_Pos")
	_ = cmd.MarkFlagRequired("point")
	if kind == operation.KindForce {
		cmd.Flags().StringVar(&value, "value", "", "value to force; a decimal comma is accepted")
		_ = cmd.MarkFlagRequired("value")
	}
	if kind != operation.KindRead {
		cmd.Flags().BoolVar(&dryRun, "dry-run", false, "stop before confirming; nothing is committed")
	}
	rf.register(cmd)
	return cmd
}

// buildRequest validates the command line before anything is opened.
func buildRequest(point string, kind operation.Kind, value string, dryRun bool) (operation.Request, error) {
	var v *float64
	if kind == operation.KindForce {
		parsed, err := operation.ParseValue(value)
		if err != nil {
			return operation.Request{}, operation.NewConfigError("value", "%q is not a number", value)
		}
		v = operation.Float(parsed)
	}
	return operation.NewRequest(point, kind, v, dryRun)
}

func (c *cli) batchCmd() *cobra.Command {
	var (
		file   string
		dryRun bool
		rf     retryFlags
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run a list of operations from a JSON or YAML file",
		Long: `Run every operation in the file in order, each with its own retries.

The file is either a bare list or an object with an "operations" key:

  operations:
    - point: 360.005-JV40_Pos
      action: force
      value: 45
    - point: 360.005-JV50_Pos
      action: unforce

A missing action means force. The exit status is 1 when any operation
ultimately failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reqs, err := batch.Load(file, dryRun)
			if err != nil {
				return err
			}

			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			policy, err := rf.policy(cmd, a)
			if err != nil {
				return err
			}
			spec, err := batch.NewSpec(reqs, policy)
			if err != nil {
				return err
			}

			sess, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer closeSession(a, sess)

			runner := batch.NewRunner(a.engine(actionlog.SourceBatch), a.log.With("component", "batch"))
			outcomes := runner.Run(cmd.Context(), sess, spec)
			for _, out := range outcomes {
				printOutcome(cmd.OutOrStdout(), out)
			}
			sum := batch.Summarise(outcomes)
			fmt.Fprintf(cmd.OutOrStdout(), "%d operations: %d succeeded, %d failed\n", sum.Total, sum.Succeeded, sum.Failed)
			if sum.Failed > 0 {
				return errOperationsFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "batch file (.json or .yaml)")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "stop every operation before confirming")
	rf.register(cmd)
	return cmd
}

func (c *cli) autoCmd() *cobra.Command {
	var (
		file     string
		once     bool
		dryRun   bool
		cycle    float64
		cooldown float64
		watch    bool
	)
	cmd := &cobra.Command{
		Use:   "auto",
		Short: "Run the rule controller",
		Long: `Sense readings, evaluate the rules and submit operations every cycle.

Operation failures are logged and never stop the loop. With --once a single
cycle runs and the command exits; the exit status is 1 only when sensing
failed. While running, edits to the rule file are applied at the next cycle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := controller.Load(file)
			if err != nil {
				return err
			}
			var ov controller.Overrides
			if cmd.Flags().Changed("dry-run") {
				ov.DryRun = &dryRun
			}
			if cmd.Flags().Changed("cycle-seconds") {
				ov.CycleSeconds = &cycle
			}
			if cmd.Flags().Changed("cooldown-seconds") {
				ov.CooldownSeconds = &cooldown
			}
			if err := ov.Apply(cfg).Validate(); err != nil {
				return err
			}

			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			return runAuto(cmd.Context(), a, file, cfg, ov, once, watch)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "controller file (.json or .yaml)")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().BoolVar(&once, "once", false, "run one cycle and exit")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "stop every submission before confirming (overrides dry_run)")
	cmd.Flags().Float64Var(&cycle, "cycle-seconds", controller.DefaultCycleSeconds, "seconds between cycles (overrides cycle_seconds)")
	cmd.Flags().Float64Var(&cooldown, "cooldown-seconds", controller.DefaultCooldownSeconds, "per-point cooldown (overrides cooldown_seconds)")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the controller file when it changes")
	return cmd
}

// runAuto wires the controller to its source and session.
func runAuto(ctx context.Context, a *app, file string, cfg *controller.Config, ov controller.Overrides, once, watch bool) error {
	if err := a.healthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	logger := a.log.With("component", "controller")
	engine := a.engine(actionlog.SourceController)

	var source controller.Source
	switch cfg.Sensors.Source {
	case controller.SourceMQTT:
		if a.mqtt == nil {
			return operation.NewConfigError("sensors.source", "mqtt requires mqtt.enabled in the operator config")
		}
		src := controller.NewMQTTSource(a.mqtt, a.mqtt.Topics(), cfg.MaxAge(), nil)
		if err := src.Start(); err != nil {
			return err
		}
		defer func() {
			if err := src.Stop(); err != nil {
				logger.Warn("stopping sensor subscription", "error", err)
			}
		}()
		source = src
	default:
		source = controller.NewPointSource(cfg.Sensors.Points, engine, cfg.Policy(), logger)
	}

	opts := controller.Options{
		Source:    source,
		Log:       a.actions,
		Overrides: ov,
		Logger:    logger,
	}
	if a.influx != nil {
		opts.Recorder = a.influx
	}
	ctrl := controller.New(cfg, engine, opts)

	sess, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer closeSession(a, sess)

	if watch && !once {
		w, err := controller.NewConfigWatcher(file, ctrl, logger)
		if err != nil {
			logger.Warn("controller file will not be reloaded", "error", err)
		} else {
			go w.Run(ctx)
		}
	}
	return ctrl.Run(ctx, sess, once)
}

func (c *cli) schedulerCmd() *cobra.Command {
	var (
		interval float64
		cycles   int
		output   string
		workers  int
	)
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Read every configured point on a fixed interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.healthCheck(cmd.Context()); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			bc := a.cfg.BulkRead
			if cmd.Flags().Changed("output-file") {
				bc.SnapshotPath = output
			}
			if cmd.Flags().Changed("workers") {
				bc.Workers = workers
			}
			if cmd.Flags().Changed("interval-seconds") {
				bc.IntervalSeconds = int(interval)
			}

			snapshots, err := bulkread.OpenSnapshotFile(bc.SnapshotPath)
			if err != nil {
				return err
			}
			defer snapshots.Close() //nolint:errcheck // best effort on exit

			logger := a.log.With("component", "bulkread")
			policy := retry.FromConfig(a.cfg.Retry)
			reader := bulkread.NewReader(a.openSession, a.engine(actionlog.SourceScheduler), bulkread.ReaderOptions{
				Workers: bc.Workers,
				Policy:  &policy,
				Logger:  logger,
			})

			opts := bulkread.SchedulerOptions{
				Interval:  bc.Interval(),
				Snapshots: snapshots,
				Log:       a.actions,
				Logger:    logger,
			}
			if a.influx != nil {
				opts.Metrics = a.influx
			}
			return bulkread.NewScheduler(reader, bulkread.PointsFromConfig(bc.Points), opts).Run(cmd.Context(), cycles)
		},
	}
	cmd.Flags().Float64Var(&interval, "interval-seconds", bulkread.DefaultInterval.Seconds(), "seconds between cycles (overrides bulk_read.interval_seconds)")
	cmd.Flags().IntVar(&cycles, "cycles", 0, "stop after this many cycles; 0 runs until interrupted")
	cmd.Flags().StringVar(&output, "output-file", bulkread.DefaultSnapshotPath, "snapshot file (overrides bulk_read.snapshot_path)")
	cmd.Flags().IntVar(&workers, "workers", bulkread.DefaultWorkers, "parallel console sessions (overrides bulk_read.workers)")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in interactively and save the session state",
		Long: `Open a visible browser at the console, wait while you log in, then save
the session cookies to console.storage_state_path for headless runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			return login(cmd.Context(), a, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// stateSaver is implemented by sessions that can persist their cookies.
type stateSaver interface {
	SaveState(ctx context.Context) error
}

func login(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	sess, err := a.opener(ctx, a.browserConfig(false))
	if err != nil {
		return fmt.Errorf("opening console session: %w", err)
	}
	defer closeSession(a, sess)

	saver, ok := sess.(stateSaver)
	if !ok {
		return errors.New("console session cannot save its state")
	}
	if err := sess.Home(ctx); err != nil {
		return fmt.Errorf("opening console: %w", err)
	}

	fmt.Fprintln(out, "Log in in the browser window, then press Enter here.")
	if _, err := bufio.NewReader(in).ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("waiting for confirmation: %w", err)
	}
	if err := saver.SaveState(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Session state saved to %s\n", a.cfg.Console.StorageStatePath)
	return nil
}

func closeSession(a *app, sess bulkread.Session) {
	if err := sess.Close(); err != nil {
		a.log.Warn("closing console session", "error", err)
	}
}
