package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures by the stage that produced them
type ErrorType string

const (
	// ErrorTypeAuth means login could not be completed. Callers continue
	// unauthenticated.
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeExtraction means a page had no embedded JSON or it was malformed
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeTransport covers connection failures, timeouts and non-2xx statuses
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeFetch means an API path failed on every retry attempt
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeResolve means no downloadable URL could be determined for an item
	ErrorTypeResolve ErrorType = "resolve"
	// ErrorTypeDownload means a file transfer or local write failed
	ErrorTypeDownload ErrorType = "download"
	// ErrorTypeNotFound means the account or its album list is inaccessible
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConfig means the configuration or input is invalid
	ErrorTypeConfig ErrorType = "config"
)

// Error carries the failure stage along with the offending path or URL
type Error struct {
	Type    ErrorType
	Message string
	// Code is the HTTP status when one was received
	Code  int
	Path  string
	Cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Type, e.Message)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s error (status %d): %s", e.Type, e.Code, e.Message)
	}
	if e.Path != "" {
		msg += " [" + e.Path + "]"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error without an underlying cause
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around cause
func Wrap(t ErrorType, cause error, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithPath sets the path or URL the error refers to
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithCode sets the HTTP status code
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// TypeOf returns the type of the outermost *Error in err's chain, or ""
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// Is reports whether any *Error in err's chain has type t
func Is(err error, t ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == t {
			return true
		}
		err = e.Cause
	}
	return false
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransport, ErrorTypeExtraction:
		return true
	default:
		return false
	}
}

// IsSuccessStatus reports whether an HTTP status is 2xx
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
