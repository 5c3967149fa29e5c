package scheduler

import "errors"

var (
	// ErrUnknownSweep is returned by RunOnce for a sweep that is not registered
	ErrUnknownSweep = errors.New("unknown sweep")

	// ErrInvalidConfig is returned when a registered sweep has no positive interval
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
