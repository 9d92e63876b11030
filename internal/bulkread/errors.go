package bulkread

import "errors"

var (
	// ErrNoPoints is returned when ReadAll is given nothing to read.
	ErrNoPoints = errors.New("bulkread: no points configured")

	// ErrNoSession is returned when no worker could open a console session.
	ErrNoSession = errors.New("bulkread: no console session could be opened")

	// ErrNoPath is returned when a snapshot file is opened without a path.
	ErrNoPath = errors.New("bulkread: snapshot path is empty")

	// ErrClosed is returned when appending to a closed snapshot file.
	ErrClosed = errors.New("bulkread: snapshot file closed")
)
