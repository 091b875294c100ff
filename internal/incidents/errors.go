package incidents

import "errors"

// Repository errors.
var (
	ErrIncidentNotFound = errors.New("incident not found")
	// ErrOpenIncidentExists is returned when an insert races with another
	// open incident for the same source.
	ErrOpenIncidentExists = errors.New("open incident already exists for source")
)

// Lifecycle errors.
var (
	ErrIncidentClosed = errors.New("incident is already resolved or closed")
)
