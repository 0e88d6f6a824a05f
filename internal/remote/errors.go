package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// ErrCORSRejected marks a request refused by a cross-origin policy
var ErrCORSRejected = errors.New("request has been blocked by CORS policy")

// StatusError is an error returned by a remote backend together with its HTTP status
type StatusError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	Details    string `json:"details,omitempty"`
	Hint       string `json:"hint,omitempty"`
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("remote error (status %d): %s", e.StatusCode, e.Message)
}

// HTTPStatus returns the HTTP status code of the error
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// HTTPStatus returns the HTTP status carried by err or anything it wraps
func HTTPStatus(err error) (int, bool) {
	var s interface{ HTTPStatus() int }
	if errors.As(err, &s) {
		return s.HTTPStatus(), true
	}
	return 0, false
}

// IsRetryable reports whether err looks transient: a network failure, a CORS
// rejection, a rate limit, a server error or an attempt that ran out of time.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if status, ok := HTTPStatus(err); ok {
		return status == http.StatusTooManyRequests || (status >= 500 && status < 600)
	}

	if errors.Is(err, ErrCORSRejected) || strings.Contains(err.Error(), "has been blocked by CORS policy") {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return isNetworkError(err)
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
