package browser

import "errors"

var (
	// ErrNoBaseURL is returned by Open when Config.BaseURL is empty.
	ErrNoBaseURL = errors.New("browser: base URL is required")

	// ErrBrowserStart indicates the browser process could not be started.
	ErrBrowserStart = errors.New("browser: failed to start")

	// ErrNotVisible indicates the point is no longer on the current view.
	ErrNotVisible = errors.New("browser: point not visible")

	// ErrNoButton indicates none of the expected dialog buttons is present.
	ErrNoButton = errors.New("browser: dialog button not found")

	// ErrButtonDisabled indicates the dialog button exists but is disabled.
	ErrButtonDisabled = errors.New("browser: dialog button disabled")

	// ErrNoState indicates SaveState was called without a storage path.
	ErrNoState = errors.New("browser: storage state path not configured")
)
