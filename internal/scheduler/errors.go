package scheduler

import "errors"

// Common errors returned by the scheduler package.
var (
	// ErrJobNotFound is returned when an operation targets an unknown job.
	ErrJobNotFound = errors.New("job not found")
	// ErrValidation wraps rejected job parameters.
	ErrValidation = errors.New("invalid job parameters")
	// ErrNotRunning is returned when the engine has not been started.
	ErrNotRunning = errors.New("scheduler is not running")
)
