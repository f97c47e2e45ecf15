package api

import (
	"fmt"
	"net/http"
)

// NetworkError reports a request that could not be sent or completed.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError reports a response with a non-2xx status.
type HTTPError struct {
	Op         string
	URL        string
	StatusCode int
	// Detail is the backend's error message when the body carried one.
	Detail string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Op, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}
