package sources

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound       = errors.New("source document not found")
	ErrEmptyDocument  = errors.New("empty document")
	ErrNotPDF         = errors.New("document is not a PDF")
	ErrFileTooLarge   = errors.New("file exceeds maximum upload size")
	ErrDigestMismatch = errors.New("stored document digest mismatch")
)

// MapHTTPStatus maps source document errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrEmptyDocument) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrNotPDF) {
		return http.StatusUnsupportedMediaType
	}
	if errors.Is(err, ErrFileTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}
