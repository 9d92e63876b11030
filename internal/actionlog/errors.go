package actionlog

import "errors"

var (
	// ErrClosed is returned by Append after the sink has been closed.
	ErrClosed = errors.New("actionlog: closed")

	// ErrNoPath is returned by OpenFile when the path is empty.
	ErrNoPath = errors.New("actionlog: path is required")
)
