package controller

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-operator/internal/operation"
	"github.com/nerrad567/gray-logic-operator/internal/retry"
)

// Default loop settings.
const (
	DefaultCycleSeconds    = 300.0
	DefaultCooldownSeconds = 900.0
	DefaultMaxAgeSeconds   = 600.0
)

// Sensor sources.
const (
	SourcePoints = "points"
	SourceMQTT   = "mqtt"
)

// Config is the controller configuration file.
type Config struct {
	Rules           []Rule        `yaml:"rules" json:"rules"`
	CycleSeconds    float64       `yaml:"cycle_seconds" json:"cycle_seconds"`
	CooldownSeconds float64       `yaml:"cooldown_seconds" json:"cooldown_seconds"`
	DryRun          bool          `yaml:"dry_run" json:"dry_run"`
	Sensors         SensorsConfig `yaml:"sensors" json:"sensors"`
	Retry           RetryConfig   `yaml:"retry" json:"retry"`
}

// SensorsConfig selects where readings come from.
type SensorsConfig struct {
	// Source is "points" (read console points each cycle) or "mqtt".
	Source string `yaml:"source" json:"source"`

	// Points maps a metric to the console point holding it.
	Points map[string]string `yaml:"points" json:"points"`

	// MaxAgeSeconds drops MQTT readings older than this.
	MaxAgeSeconds float64 `yaml:"max_age_seconds" json:"max_age_seconds"`
}

// RetryConfig is the retry policy for controller submissions.
type RetryConfig struct {
	MaxAttempts    int     `yaml:"max_attempts" json:"max_attempts"`
	BackoffSeconds float64 `yaml:"backoff_seconds" json:"backoff_seconds"`
}

// Cycle returns the sleep between cycles.
func (c *Config) Cycle() time.Duration { return seconds(c.CycleSeconds) }

// Cooldown returns the per-point cooldown window.
func (c *Config) Cooldown() time.Duration { return seconds(c.CooldownSeconds) }

// MaxAge returns the freshness limit for pushed readings.
func (c *Config) MaxAge() time.Duration { return seconds(c.Sensors.MaxAgeSeconds) }

// Policy returns the retry policy for submissions.
func (c *Config) Policy() retry.Policy {
	return retry.Policy{MaxAttempts: c.Retry.MaxAttempts, BackoffBase: seconds(c.Retry.BackoffSeconds)}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// defaultConfig returns the values used for keys the file omits.
func defaultConfig() *Config {
	return &Config{
		CycleSeconds:    DefaultCycleSeconds,
		CooldownSeconds: DefaultCooldownSeconds,
		Sensors: SensorsConfig{
			Source:        SourcePoints,
			MaxAgeSeconds: DefaultMaxAgeSeconds,
		},
		Retry: RetryConfig{
			MaxAttempts:    retry.DefaultMaxAttempts,
			BackoffSeconds: retry.DefaultBackoffBase.Seconds(),
		},
	}
}

// Load reads and validates a controller file. Files ending in .json are
// decoded as JSON, everything else as YAML. All errors are
// *operation.ConfigError.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path supplied by the operator
	if err != nil {
		return nil, operation.NewConfigError("controller", "reading %s: %v", path, err)
	}
	return Parse(data, strings.EqualFold(filepath.Ext(path), ".json"))
}

// Parse decodes and validates controller file contents.
func Parse(data []byte, isJSON bool) (*Config, error) {
	cfg := defaultConfig()
	if isJSON {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, operation.NewConfigError("controller", "invalid JSON: %v", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, operation.NewConfigError("controller", "invalid YAML: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and compiles the value templates.
// It reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Rules) == 0 {
		errs = append(errs, "at least one rule is required")
	}
	for i := range c.Rules {
		r := &c.Rules[i]
		if err := r.validate(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", r.label(i), err))
			continue
		}
		compiled, _ := ParseValueExpr(r.Value.String()) //nolint:errcheck // checked by validate
		r.Value = compiled
	}

	if c.CycleSeconds <= 0 {
		errs = append(errs, "cycle_seconds must be positive")
	}
	if c.CooldownSeconds < 0 {
		errs = append(errs, "cooldown_seconds must not be negative")
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry.max_attempts must be at least 1")
	}
	if c.Retry.BackoffSeconds < 0 {
		errs = append(errs, "retry.backoff_seconds must not be negative")
	}

	switch c.Sensors.Source {
	case SourcePoints:
		if len(c.Sensors.Points) == 0 {
			errs = append(errs, "sensors.points must map at least one metric to a point")
		}
	case SourceMQTT:
		if c.Sensors.MaxAgeSeconds <= 0 {
			errs = append(errs, "sensors.max_age_seconds must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("sensors.source %q must be %q or %q", c.Sensors.Source, SourcePoints, SourceMQTT))
	}

	if len(errs) > 0 {
		return operation.NewConfigError("controller", "%s", strings.Join(errs, "; "))
	}
	return nil
}

// Overrides are command-line settings that take precedence over the file.
// They are reapplied after every reload.
type Overrides struct {
	CycleSeconds    *float64
	CooldownSeconds *float64
	DryRun          *bool
}

// Apply returns a copy of cfg with the overrides applied.
func (o Overrides) Apply(cfg *Config) *Config {
	c := *cfg
	if o.CycleSeconds != nil {
		c.CycleSeconds = *o.CycleSeconds
	}
	if o.CooldownSeconds != nil {
		c.CooldownSeconds = *o.CooldownSeconds
	}
	if o.DryRun != nil {
		c.DryRun = *o.DryRun
	}
	return &c
}
