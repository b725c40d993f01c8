package attendance

import (
	"errors"
	"fmt"
)

var (
	// ErrCircuitOpen is returned while the remote sink's breaker is open
	ErrCircuitOpen = errors.New("attendance api circuit breaker is open")

	// ErrInvalidResponse is returned when the attendance API answers 2xx with
	// an unreadable body
	ErrInvalidResponse = errors.New("invalid response from attendance api")
)

// APIError is a non-2xx answer from the attendance API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("attendance api error: %d %s", e.StatusCode, e.Message)
}

// IsServerError reports whether the API failed rather than refused
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// ConnectionError wraps a transport failure
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("attendance api connection error: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}
