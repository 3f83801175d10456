package runs

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound          = errors.New("run not found")
	ErrDuplicate         = errors.New("run already exists")
	ErrStaleRevision     = errors.New("run was modified concurrently")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInconsistentRun   = errors.New("run fields inconsistent with state")
)

// MapHTTPStatus maps run errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrStaleRevision) || errors.Is(err, ErrInvalidTransition) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
