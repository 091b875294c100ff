package hosts

import "errors"

// Domain errors for the hosts store.
var (
	ErrHostNotFound    = errors.New("host not found")
	ErrServiceNotFound = errors.New("service not found")
	ErrStatusConflict  = errors.New("host status changed concurrently")
)
