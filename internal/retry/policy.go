package retry

import (
	"time"

	"github.com/nerrad567/gray-logic-operator/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-operator/internal/operation"
)

// Default policy values.
const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 2 * time.Second
)

// Policy is the retry policy applied to one request.
type Policy struct {
	// MaxAttempts is the total number of attempts, at least 1.
	MaxAttempts int

	// BackoffBase is multiplied by the attempt number to get the wait after
	// a failed attempt. Zero retries immediately.
	BackoffBase time.Duration
}

// DefaultPolicy returns three attempts with a two second base.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, BackoffBase: DefaultBackoffBase}
}

// FromConfig builds a policy from the retry section.
func FromConfig(cfg config.RetryConfig) Policy {
	return Policy{MaxAttempts: cfg.MaxAttempts, BackoffBase: cfg.Backoff()}
}

// Validate returns a *operation.ConfigError for an unusable policy.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return operation.NewConfigError("retries", "must be at least 1, got %d", p.MaxAttempts)
	}
	if p.BackoffBase < 0 {
		return operation.NewConfigError("backoff", "must not be negative, got %s", p.BackoffBase)
	}
	return nil
}

// Backoff returns the wait after failed attempt n (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return p.BackoffBase * time.Duration(attempt)
}
