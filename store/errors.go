package store

import "errors"

// ErrNotFound is returned when a snapshot or run has no stored data.
var ErrNotFound = errors.New("snapshot not found")
