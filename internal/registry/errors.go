package registry

import "errors"

// Common errors returned by the registry package.
var (
	// ErrUnknownClass is returned when a job class string does not resolve.
	ErrUnknownClass = errors.New("unknown job class")
	// ErrDuplicateClass is returned when a class string is registered twice.
	ErrDuplicateClass = errors.New("job class already registered")
)
