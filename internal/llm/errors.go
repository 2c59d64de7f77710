package llm

import (
	"errors"
	"fmt"
)

// ErrNotSupported marks an operation a provider cannot perform at all.
var ErrNotSupported = errors.New("operation not supported")

// StatusCoder is implemented by provider errors that carry the HTTP status
// the API answered with.
type StatusCoder interface {
	StatusCode() int
}

// APIError is a provider call the API rejected.
type APIError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status.
func (e *APIError) StatusCode() int { return e.Status }

// StatusCode returns the HTTP status carried anywhere in err's chain.
func StatusCode(err error) (int, bool) {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	return 0, false
}
