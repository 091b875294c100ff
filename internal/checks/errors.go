package checks

import "errors"

// ErrCheckNotFound is returned when a check does not exist.
var ErrCheckNotFound = errors.New("check not found")
