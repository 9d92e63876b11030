package console

import "errors"

// Errors returned by Session implementations. The executor maps them onto
// operation failure kinds depending on the state that observed them.
var (
	// ErrTimeout is returned when a bounded wait expires.
	ErrTimeout = errors.New("console: wait timed out")

	// ErrNoInput is returned when no field strategy accepted the value.
	ErrNoInput = errors.New("console: no input field accepted the value")

	// ErrNoDialog is returned when a dialog capability is used with no dialog open.
	ErrNoDialog = errors.New("console: no dialog open")

	// ErrWrongPoint is returned by OpenDialog when the dialog that opened does
	// not show the requested identifier exactly. The dialog is left open.
	ErrWrongPoint = errors.New("console: dialog belongs to a different point")

	// ErrCannotConfirm is returned when the dialog's commit control is
	// missing or disabled.
	ErrCannotConfirm = errors.New("console: dialog cannot be confirmed")
)
