// Package graph provides an HTTP client for the Microsoft Graph API
// with automatic retry, throttling detection, paginated listing, and
// the directory and contacts endpoints used by contactsync.
package graph

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, graph.ErrNotFound) to check.
var (
	ErrBadRequest       = errors.New("graph: bad request")
	ErrUnauthorized     = errors.New("graph: unauthorized")
	ErrForbidden        = errors.New("graph: forbidden")
	ErrNotFound         = errors.New("graph: not found")
	ErrMethodNotAllowed = errors.New("graph: method not allowed")
	ErrConflict         = errors.New("graph: conflict")
	ErrThrottled        = errors.New("graph: throttled")
	ErrServerError      = errors.New("graph: server error")
)

// ErrThrottledExhausted is returned when every attempt of a request was
// answered with a throttling or transient-unavailable status.
var ErrThrottledExhausted = errors.New("graph: retries exhausted while throttled")

// ErrTokenAcquisition wraps failures from the token provider. Without a
// token no request can succeed, so callers treat it as fatal for the run.
var ErrTokenAcquisition = errors.New("graph: token acquisition failed")

// GraphError wraps a sentinel error with HTTP status code, request ID,
// and the API error message body for debugging.
type GraphError struct {
	StatusCode int
	RequestID  string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *GraphError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("graph: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("graph: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

// ThrottledError reports the last retryable status seen before the retry
// budget ran out.
type ThrottledError struct {
	Method     string
	Path       string
	StatusCode int
	Attempts   int
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("graph: %s %s still throttled (HTTP %d) after %d attempts",
		e.Method, e.Path, e.StatusCode, e.Attempts)
}

func (e *ThrottledError) Unwrap() error {
	return ErrThrottledExhausted
}

// NewGraphError builds a GraphError for a status that was observed outside
// Client.Do, such as a sub-response of a $batch request.
func NewGraphError(status int, requestID, message string) *GraphError {
	return &GraphError{
		StatusCode: status,
		RequestID:  requestID,
		Message:    message,
		Err:        classifyStatus(status),
	}
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
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
	case http.StatusMethodNotAllowed:
		return ErrMethodNotAllowed
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// IsRetryable reports whether the given HTTP status code signals rate
// limiting or a transient server condition worth retrying.
func IsRetryable(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
