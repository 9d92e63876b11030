package operation

import (
	"errors"
	"fmt"
)

// ErrConfig is matched by every *ConfigError.
var ErrConfig = errors.New("operation: invalid configuration")

// ConfigError reports malformed batch, controller or request input.
// It is fatal at startup and never retried.
type ConfigError struct {
	// Field locates the offending input (e.g. "operations[2].value").
	Field string

	// Reason is a short human-readable description.
	Reason string
}

// Error implements error.
func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", FailureConfig, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", FailureConfig, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrConfig) true for any *ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// NewConfigError builds a *ConfigError for the given field.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// FailureKind tags why an attempt failed.
type FailureKind string

const (
	// FailureNotFound means the point resolved by neither identifier form.
	FailureNotFound FailureKind = "NotFound"

	// FailureDialogTimeout means the point dialog never became visible.
	FailureDialogTimeout FailureKind = "DialogTimeout"

	// FailureConfirmTimeout means the dialog did not close after confirm.
	FailureConfirmTimeout FailureKind = "ConfirmTimeout"

	// FailureInputRejected means no field strategy accepted the value.
	FailureInputRejected FailureKind = "InputRejected"

	// FailureSession covers transport and browser failures.
	FailureSession FailureKind = "SessionError"

	// FailureConfig tags outcomes of requests rejected before any attempt.
	FailureConfig FailureKind = "ConfigError"
)

// Retryable reports whether a failure of this kind is worth another attempt.
func (k FailureKind) Retryable() bool {
	return k != FailureConfig
}
