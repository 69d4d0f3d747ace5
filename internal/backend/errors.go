package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// FetchError reports a request to the benchmark API that returned no data:
// either the transport failed (StatusCode 0) or the server answered non-2xx.
type FetchError struct {
	Resource   string
	URL        string
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("failed to fetch %s from %s: %v", e.Resource, e.URL, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("failed to fetch %s from %s: status %d: %s", e.Resource, e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("failed to fetch %s from %s: status %d", e.Resource, e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error is a 404.
func IsNotFound(err error) bool {
	var e *FetchError
	if errors.As(err, &e) {
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// IsUnauthorized returns true if the error is a 401.
func IsUnauthorized(err error) bool {
	var e *FetchError
	if errors.As(err, &e) {
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// IsConflict returns true if the error is a 409.
func IsConflict(err error) bool {
	var e *FetchError
	if errors.As(err, &e) {
		return e.StatusCode == http.StatusConflict
	}
	return false
}
