package soap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrExhausted wraps the last transient failure once every attempt is spent.
var ErrExhausted = errors.New("soap: retries exhausted")

// Fault is a SOAP fault returned by the remote service. Faults are not
// retried.
type Fault struct {
	Code    string
	Message string
	Detail  any
}

func (f *Fault) Error() string {
	if f.Code == "" {
		return fmt.Sprintf("soap fault: %s", f.Message)
	}
	return fmt.Sprintf("soap fault %s: %s", f.Code, f.Message)
}

// StatusError reports an HTTP response without a usable envelope.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("soap: remote returned status %d", e.StatusCode)
}

// transientError marks a failure that may succeed on another attempt.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was classified as retry-safe.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// IsTimeout reports whether the call ran out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// transientStatus lists server responses worth another attempt. A 500 is
// only retried when it does not carry a SOAP fault.
func transientStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
