// Package notesapi provides an HTTP client for the notes backend API.
// It attaches a bearer credential to every request and classifies error
// responses; it performs no retry or backoff — every failure is terminal
// for that attempt and must be re-initiated by the caller.
package notesapi

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, notesapi.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("notesapi: bad request")
	ErrUnauthorized = errors.New("notesapi: unauthorized")
	ErrForbidden    = errors.New("notesapi: forbidden")
	ErrNotFound     = errors.New("notesapi: not found")
	ErrConflict     = errors.New("notesapi: conflict")
	ErrServerError  = errors.New("notesapi: server error")
)

// APIError wraps a sentinel error with the HTTP status code, the request ID
// the client generated, and the API error message body for debugging.
type APIError struct {
	StatusCode int
	RequestID  string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("notesapi: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("notesapi: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return fmt.Errorf("notesapi: unexpected status %d", code)
	}
}
