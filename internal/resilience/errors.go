package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorClass is the retry classification of a failed outbound call.
type ErrorClass int

const (
	// ClassNone means the call succeeded.
	ClassNone ErrorClass = iota
	// ClassTransient covers timeouts and other failures that are safe to retry.
	ClassTransient
	// ClassAuth means the credential was rejected. Never retried.
	ClassAuth
	// ClassClient means the request itself was malformed (4xx other than auth).
	ClassClient
	// ClassUnexpected is everything else. Never retried.
	ClassUnexpected
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTransient:
		return "transient"
	case ClassAuth:
		return "auth"
	case ClassClient:
		return "client"
	case ClassUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against a *RequestError.
var (
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrAuth             = errors.New("authentication failed")
	ErrClientRequest    = errors.New("client request rejected")
	ErrUnexpected       = errors.New("unexpected request failure")
)

// HTTPStatusError is implemented by API client errors that carry an HTTP
// status code.
type HTTPStatusError interface {
	error
	HTTPStatus() int
}

// TransientError wraps an error that is safe to retry (e.g., 429, 5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// RequestError is the terminal error returned by Send once a call has failed
// for good, either on a non-retryable class or after the last attempt.
type RequestError struct {
	Service   string
	Class     ErrorClass
	Attempts  int
	Exhausted bool
	Err       error
}

func (e *RequestError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("%s: retries exhausted after %d attempts: %v", e.Service, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Service, e.Class, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is lets callers test the failure kind with errors.Is.
func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrRetriesExhausted:
		return e.Exhausted
	case ErrAuth:
		return e.Class == ClassAuth
	case ErrClientRequest:
		return e.Class == ClassClient
	case ErrUnexpected:
		return e.Class == ClassUnexpected
	}
	return false
}

// IsFatal reports whether err must abort the whole run: an authentication
// failure, exhausted retries, or caller cancellation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrRetriesExhausted)
}

// Classify maps an error returned by an outbound call onto an ErrorClass.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}

	var se HTTPStatusError
	if errors.As(err, &se) {
		switch code := se.HTTPStatus(); {
		case code == 401 || code == 403:
			return ClassAuth
		case IsTransientHTTPStatus(code):
			return ClassTransient
		case code >= 400 && code < 500:
			return ClassClient
		}
	}

	if IsTransient(err) {
		return ClassTransient
	}
	return ClassUnexpected
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient error patterns (network
// timeouts, connection resets, DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	// A per-attempt deadline is a read timeout from the caller's point of view.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
		"client.timeout exceeded",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
