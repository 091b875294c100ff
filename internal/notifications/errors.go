package notifications

import "errors"

// Dispatch errors.
var (
	ErrNoSender     = errors.New("no sender registered for channel type")
	ErrEmptyTarget  = errors.New("notification target is empty")
	ErrItemNotFound = errors.New("notification queue item not found")
)
