package controller

import "errors"

var (
	// ErrNoReadings is returned by a Source that produced no usable reading.
	ErrNoReadings = errors.New("controller: no sensor readings")

	// ErrSourceNotStarted is returned by MQTTSource.Sense before Start.
	ErrSourceNotStarted = errors.New("controller: sensor source not started")

	// ErrInvalidExpression indicates a value expression that cannot be parsed.
	ErrInvalidExpression = errors.New("controller: invalid value expression")
)
