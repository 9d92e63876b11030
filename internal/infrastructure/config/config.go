package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file used when neither the command line
// nor OPERATOR_CONFIG names one.
const DefaultPath = "configs/operator.yaml"

// EnvConfigPath names the environment variable that overrides DefaultPath.
const EnvConfigPath = "OPERATOR_CONFIG"

// Config is the root configuration structure for the operator.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Console   ConsoleConfig   `yaml:"console"`
	Retry     RetryConfig     `yaml:"retry"`
	ActionLog ActionLogConfig `yaml:"action_log"`
	BulkRead  BulkReadConfig  `yaml:"bulk_read"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// SiteConfig identifies the building the operator works on.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ConsoleConfig contains the web console session settings.
type ConsoleConfig struct {
	BaseURL          string         `yaml:"base_url"`
	StorageStatePath string         `yaml:"storage_state_path"`
	ArtifactsDir     string         `yaml:"artifacts_dir"`
	Viewport         ViewportConfig `yaml:"viewport"`
	Headless         bool           `yaml:"headless"`
	TimeoutMS        int            `yaml:"timeout_ms"`
}

// ViewportConfig is the browser window size.
type ViewportConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Timeout returns the per-wait console timeout as a Duration.
func (c ConsoleConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// RetryConfig is the default retry policy for single and batch operations.
type RetryConfig struct {
	MaxAttempts    int     `yaml:"max_attempts"`
	BackoffSeconds float64 `yaml:"backoff_seconds"`
}

// Backoff returns the backoff base as a Duration.
func (c RetryConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffSeconds * float64(time.Second))
}

// ActionLogConfig selects the action history sinks.
type ActionLogConfig struct {
	// Path is the JSON Lines history file. Empty disables the file sink.
	Path string `yaml:"path"`

	// SQLite stores records in the database for the history command.
	SQLite bool `yaml:"sqlite"`

	// MQTT publishes each record (requires mqtt.enabled).
	MQTT bool `yaml:"mqtt"`

	// Influx writes each record as a point (requires influxdb.enabled).
	Influx bool `yaml:"influx"`
}

// BulkReadConfig contains the bulk point reader and scheduler settings.
type BulkReadConfig struct {
	Workers         int               `yaml:"workers"`
	IntervalSeconds int               `yaml:"interval_seconds"`
	SnapshotPath    string            `yaml:"snapshot_path"`
	Points          []BulkPointConfig `yaml:"points"`
}

// BulkPointConfig defines one point read by the bulk reader.
type BulkPointConfig struct {
	Name     string `yaml:"name"`
	Unit     string `yaml:"unit"`
	Category string `yaml:"category"`
}

// Interval returns the scheduler interval as a Duration.
func (c BulkReadConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path string `yaml:"path"`
}

// TelemetryConfig contains OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: OPERATOR_SECTION_KEY
// For example: OPERATOR_CONSOLE_BASE_URL, OPERATOR_DATABASE_PATH
//
// An empty path skips step 2.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// ResolvePath returns flag if set, then $OPERATOR_CONFIG, then DefaultPath
// when that file exists, else "".
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(EnvConfigPath); v != "" {
		return v
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath
	}
	return ""
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Console: ConsoleConfig{
			StorageStatePath: "state/console_session.json",
			ArtifactsDir:     "artifacts",
			Viewport:         ViewportConfig{Width: 1400, Height: 900},
			Headless:         true,
			TimeoutMS:        30000,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			BackoffSeconds: 2,
		},
		ActionLog: ActionLogConfig{
			Path:   "logs/operator_actions.jsonl",
			SQLite: true,
		},
		BulkRead: BulkReadConfig{
			Workers:         4,
			IntervalSeconds: 3600,
			SnapshotPath:    "logs/point_snapshots.jsonl",
		},
		Database: DatabaseConfig{
			Path:        "./data/operator.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-operator",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "graylogic/operator",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "graylogic-operator",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: OPERATOR_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Console
	if v := os.Getenv("OPERATOR_CONSOLE_BASE_URL"); v != "" {
		cfg.Console.BaseURL = v
	}
	if v := os.Getenv("OPERATOR_CONSOLE_STORAGE_STATE_PATH"); v != "" {
		cfg.Console.StorageStatePath = v
	}
	if v := os.Getenv("OPERATOR_CONSOLE_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Console.Headless = b
		}
	}

	// Database
	if v := os.Getenv("OPERATOR_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("OPERATOR_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("OPERATOR_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("OPERATOR_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("OPERATOR_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("OPERATOR_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("OPERATOR_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Telemetry
	if v := os.Getenv("OPERATOR_TELEMETRY_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error { //nolint:gocognit,gocyclo // flat list of independent field checks
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Console
	if c.Console.BaseURL != "" {
		u, err := url.Parse(c.Console.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, "console.base_url must be an absolute http(s) URL")
		}
	}
	if c.Console.TimeoutMS <= 0 {
		errs = append(errs, "console.timeout_ms must be positive")
	}
	if c.Console.Viewport.Width <= 0 || c.Console.Viewport.Height <= 0 {
		errs = append(errs, "console.viewport width and height must be positive")
	}

	// Retry
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry.max_attempts must be at least 1")
	}
	if c.Retry.BackoffSeconds < 0 {
		errs = append(errs, "retry.backoff_seconds must not be negative")
	}

	// Bulk reader
	if c.BulkRead.Workers < 1 {
		errs = append(errs, "bulk_read.workers must be at least 1")
	}
	if c.BulkRead.IntervalSeconds < 1 {
		errs = append(errs, "bulk_read.interval_seconds must be at least 1")
	}
	for i, p := range c.BulkRead.Points {
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Sprintf("bulk_read.points[%d].name is required", i))
		}
	}

	// Database
	if c.ActionLog.SQLite && c.Database.Path == "" {
		errs = append(errs, "database.path is required when action_log.sqlite is set")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.TopicPrefix == "" || strings.ContainsAny(c.MQTT.TopicPrefix, "+#") {
			errs = append(errs, "mqtt.topic_prefix must be non-empty and free of wildcards")
		}
	}
	if c.ActionLog.MQTT && !c.MQTT.Enabled {
		errs = append(errs, "action_log.mqtt requires mqtt.enabled")
	}

	// InfluxDB
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required when influxdb.enabled is set")
	}
	if c.ActionLog.Influx && !c.InfluxDB.Enabled {
		errs = append(errs, "action_log.influx requires influxdb.enabled")
	}

	// Logging
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, "logging.level must be debug, info, warn or error")
	}
	if c.Logging.Output == "file" && c.Logging.File.Path == "" {
		errs = append(errs, "logging.file.path is required when logging.output is file")
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		errs = append(errs, "telemetry.endpoint is required when telemetry.enabled is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
