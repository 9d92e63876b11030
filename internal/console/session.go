package console

import "context"

// Session is one authenticated, navigable console session.
//
// Every method blocks for at most the implementation's configured timeout
// (or the context deadline, whichever is earlier) and reports an expired wait
// as ErrTimeout.
type Session interface {
	// Home navigates to the configured base view.
	Home(ctx context.Context) error

	// Locate reports whether name resolves to a point on the current view.
	Locate(ctx context.Context, name string) (bool, error)

	// OpenDialog opens the detail dialog for the point resolved by name,
	// waits until the modal is present and checks that it shows name
	// exactly. Returns ErrWrongPoint when it shows another point.
	OpenDialog(ctx context.Context, name string) error

	// ReadValue extracts the current value shown in the open dialog.
	ReadValue(ctx context.Context) (string, error)

	// EnterValue types value into the first input field that accepts it.
	// Returns ErrNoInput when none does.
	EnterValue(ctx context.Context, value string) error

	// Release triggers the unforce control in the open dialog.
	Release(ctx context.Context) error

	// CanConfirm checks that the commit control of the open dialog is
	// present and enabled without using it. Returns ErrCannotConfirm
	// otherwise.
	CanConfirm(ctx context.Context) error

	// Confirm commits the dialog and waits for it to close.
	Confirm(ctx context.Context) error

	// Dismiss cancels the dialog without committing and waits for it to close.
	Dismiss(ctx context.Context) error

	// Screenshot captures the current view and returns an opaque reference.
	Screenshot(ctx context.Context, label string) (string, error)
}

// Logger is the logging interface used by Executor.
// Compatible with logging.Logger and slog.Logger.
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
