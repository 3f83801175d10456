package database

import "errors"

// ErrNotReady wraps a failed connectivity check.
var ErrNotReady = errors.New("database not ready")
