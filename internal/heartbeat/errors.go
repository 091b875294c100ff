package heartbeat

import "errors"

// ErrUnauthorized is returned for unknown API keys and deactivated hosts.
var ErrUnauthorized = errors.New("invalid or inactive agent api key")
