package pipeline

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/creditread/internal/runs"
	"github.com/JaimeStill/creditread/internal/sources"
)

var (
	ErrOverloaded      = errors.New("pipeline queue is full")
	ErrInvalidRunID    = errors.New("invalid run id")
	ErrInvalidCallback = errors.New("invalid callback url")
	ErrTerminal        = errors.New("run already finished")
	ErrInvalidUpload   = errors.New("invalid upload")
	ErrRetryLimit      = errors.New("run retry limit reached")
)

// errCancelRequested is the cancellation cause set by Cancel. Any other
// cause on a run context means the process is shutting down.
var errCancelRequested = errors.New("cancel requested")

// MapHTTPStatus maps pipeline, run, and source errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrOverloaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrInvalidRunID), errors.Is(err, ErrInvalidCallback), errors.Is(err, ErrInvalidUpload):
		return http.StatusBadRequest
	case errors.Is(err, ErrTerminal), errors.Is(err, ErrRetryLimit):
		return http.StatusConflict
	}

	if status := sources.MapHTTPStatus(err); status != http.StatusInternalServerError {
		return status
	}
	return runs.MapHTTPStatus(err)
}
