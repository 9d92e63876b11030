package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-operator/internal/actionlog"
	"github.com/nerrad567/gray-logic-operator/internal/bulkread"
	"github.com/nerrad567/gray-logic-operator/internal/console"
	"github.com/nerrad567/gray-logic-operator/internal/console/browser"
	"github.com/nerrad567/gray-logic-operator/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-operator/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-operator/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-operator/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-operator/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-operator/internal/retry"
	"github.com/nerrad567/gray-logic-operator/internal/telemetry"
	"github.com/nerrad567/gray-logic-operator/migrations"
)

// shutdownTimeout bounds the telemetry flush on exit.
const shutdownTimeout = 5 * time.Second

// sessionOpener starts a console session. Tests replace it with a fake.
type sessionOpener func(ctx context.Context, cfg browser.Config) (bulkread.Session, error)

// openBrowser opens a chromedp-backed console session.
func openBrowser(ctx context.Context, cfg browser.Config) (bulkread.Session, error) {
	s, err := browser.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// app holds the infrastructure shared by every command.
type app struct {
	cfg    *config.Config
	log    *logging.Logger
	opener sessionOpener

	actions actionlog.Log
	db      *database.DB
	history *actionlog.SQLiteLog
	mqtt    *mqtt.Client
	influx  *influxdb.Client

	closers []func() error
}

// newApp loads configuration and connects the enabled sinks. The caller must
// call close, also when newApp fails part way.
func newApp(ctx context.Context, configPath string, opener sessionOpener) (*app, error) {
	path := config.ResolvePath(configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.New(cfg.Logging, version)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a := &app{cfg: cfg, log: log, opener: opener}
	a.closers = append(a.closers, log.Close)
	if path == "" {
		log.Debug("no config file, using defaults")
	} else {
		log.Debug("configuration loaded", "path", path)
	}

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, version)
	if err != nil {
		return a, err
	}
	a.closers = append(a.closers, func() error {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return shutdown(sctx)
	})

	if err := a.openSinks(ctx); err != nil {
		return a, err
	}
	return a, nil
}

// openSinks connects every configured action log sink.
func (a *app) openSinks(ctx context.Context) error { //nolint:gocognit // one block per optional sink
	cfg := a.cfg
	var sinks []actionlog.Log

	if cfg.ActionLog.Path != "" {
		f, err := actionlog.OpenFile(cfg.ActionLog.Path)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, f.Close)
		sinks = append(sinks, f)
	}

	if cfg.ActionLog.SQLite {
		db, err := database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		a.db = db
		a.history = actionlog.NewSQLiteLog(db.DB)
		sinks = append(sinks, a.history)
	}

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		client.SetLogger(a.log)
		client.SetOnConnect(func() {
			a.log.Info("MQTT reconnected")
		})
		client.SetOnDisconnect(func(err error) {
			a.log.Warn("MQTT disconnected", "error", err)
		})
		a.closers = append(a.closers, client.Close)
		a.mqtt = client
		if cfg.ActionLog.MQTT {
			sinks = append(sinks, actionlog.NewMQTTLog(client, client.Topics(), byte(cfg.MQTT.QoS))) //nolint:gosec // qos validated to 0..2
		}
	}

	if cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		client.SetOnError(func(err error) {
			a.log.Error("InfluxDB write error", "error", err)
		})
		a.closers = append(a.closers, client.Close)
		a.influx = client
		if cfg.ActionLog.Influx {
			sinks = append(sinks, actionlog.NewInfluxLog(client))
		}
	}

	a.actions = actionlog.Multi(sinks...)
	return nil
}

// healthCheck verifies the connected sinks before a long-running command.
func (a *app) healthCheck(ctx context.Context) error {
	if a.db != nil {
		if err := a.db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if a.mqtt != nil {
		if err := a.mqtt.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if a.influx != nil {
		if err := a.influx.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// close releases everything in reverse order of opening.
func (a *app) close() {
	if a == nil {
		return
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("closing resources", "error", err)
	}
}

// browserConfig maps the console section onto a session config.
func (a *app) browserConfig(headless bool) browser.Config {
	c := a.cfg.Console
	return browser.Config{
		BaseURL:          c.BaseURL,
		StorageStatePath: c.StorageStatePath,
		ArtifactsDir:     c.ArtifactsDir,
		Viewport:         browser.Viewport{Width: c.Viewport.Width, Height: c.Viewport.Height},
		Headless:         headless,
		Timeout:          c.Timeout(),
		Logger:           a.log.With("component", "browser"),
	}
}

// openSession opens one console session using the configured headless mode.
func (a *app) openSession(ctx context.Context) (bulkread.Session, error) {
	sess, err := a.opener(ctx, a.browserConfig(a.cfg.Console.Headless))
	if err != nil {
		return nil, fmt.Errorf("opening console session: %w", err)
	}
	return sess, nil
}

// engine builds the retry engine over a fresh executor.
func (a *app) engine(source string) *retry.Engine {
	exec := console.NewExecutor(console.ExecutorOptions{
		StepTimeout: a.cfg.Console.Timeout(),
		Logger:      a.log.With("component", "executor"),
	})
	return retry.New(exec.Execute, retry.Options{
		Log:    a.actions,
		Source: source,
		Logger: a.log.With("component", "retry"),
	})
}
