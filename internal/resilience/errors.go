package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// RecoverableError wraps an error that is safe to retry, such as a rate
// limit, an overloaded backend, or a network timeout.
type RecoverableError struct {
	Err        error
	StatusCode int
}

func (e *RecoverableError) Error() string {
	return e.Err.Error()
}

func (e *RecoverableError) Unwrap() error {
	return e.Err
}

// NewRecoverableError wraps an error as recoverable with an optional HTTP
// status code.
func NewRecoverableError(err error, statusCode int) *RecoverableError {
	return &RecoverableError{Err: err, StatusCode: statusCode}
}

// IsRecoverable reports whether the error (or any error in its chain) is a
// RecoverableError, or matches common transient failure patterns from model
// backends and their HTTP transports.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}

	var re *RecoverableError
	if errors.As(err, &re) {
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

	// String heuristics for errors wrapped by SDK HTTP clients.
	msg := strings.ToLower(err.Error())
	recoverablePatterns := []string{
		"rate limit",
		"rate_limit",
		"overloaded",
		"too many requests",
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"502", "503", "504",
	}
	for _, p := range recoverablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsRecoverableHTTPStatus reports whether the status code indicates a
// transient server-side issue that is safe to retry.
func IsRecoverableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
