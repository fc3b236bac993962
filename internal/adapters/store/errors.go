package store

import "errors"

// Sentinel kinds for store errors.
var (
	ErrBadWindow = errors.New("window must be positive")
)
