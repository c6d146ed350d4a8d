// Package errors provides structured error types for apkfetch.
//
// Every failure raised while acquiring, normalizing or patching an
// application carries a machine-readable [Code], the source that produced it
// (e.g. "apkmirror", "github") and the URL or file path that was being
// processed. The orchestrator logs these per application and keeps going.
//
// # Error Codes
//
//   - SCRAPING: a page or API response did not have the expected shape
//   - DOWNLOAD: a download could not be resolved or transferred
//   - NOT_FOUND: a requested version is absent from a source's listing
//   - NORMALIZATION: the external merge tool failed
//   - NO_STRATEGY: no acquisition strategy handles a source
//   - PATCHING: the patch tool failed
//   - INVALID_*: configuration or input validation failures
//
// # Usage
//
//	err := errors.Scraping("apkmirror", url, "no release rows on page")
//	if errors.Is(err, errors.ErrCodeScraping) {
//	    // handle scraping failure
//	}
//	if errors.FromSource(err, "apkmirror") {
//	    // source-specific handling
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"
	ErrCodeInvalidVersion Code = "INVALID_VERSION"
	ErrCodeInvalidPath    Code = "INVALID_PATH"

	// Acquisition errors
	ErrCodeScraping   Code = "SCRAPING"
	ErrCodeDownload   Code = "DOWNLOAD"
	ErrCodeNotFound   Code = "NOT_FOUND"
	ErrCodeNoStrategy Code = "NO_STRATEGY"

	// Post-processing errors
	ErrCodeNormalization Code = "NORMALIZATION"
	ErrCodePatching      Code = "PATCHING"

	// Network errors
	ErrCodeNetwork     Code = "NETWORK_ERROR"
	ErrCodeRateLimited Code = "RATE_LIMITED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Source  string // Acquisition source family (e.g. "uptodown"), may be empty
	URL     string // Offending URL or file path, may be empty
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Source != "" {
		msg = fmt.Sprintf("%s: [%s] %s", e.Code, e.Source, e.Message)
	}
	if e.URL != "" {
		msg += " (" + e.URL + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.Cause = cause
	return &c
}

// Scraping reports a page or response whose structure did not match expectations.
func Scraping(source, url, format string, args ...any) *Error {
	return &Error{Code: ErrCodeScraping, Source: source, URL: url, Message: fmt.Sprintf(format, args...)}
}

// Download reports a failure to resolve or transfer a file from a source.
func Download(source, url, format string, args ...any) *Error {
	return &Error{Code: ErrCodeDownload, Source: source, URL: url, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a requested version that no listing of the source contains.
func NotFound(source, url, format string, args ...any) *Error {
	return &Error{Code: ErrCodeNotFound, Source: source, URL: url, Message: fmt.Sprintf(format, args...)}
}

// Normalization reports a failed archive merge for the file at path.
func Normalization(path string, cause error, format string, args ...any) *Error {
	return &Error{Code: ErrCodeNormalization, URL: path, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Patching reports a failed patch tool run for the package at path.
func Patching(path string, cause error, format string, args ...any) *Error {
	return &Error{Code: ErrCodePatching, URL: path, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// FromSource reports whether err was raised by the named acquisition source.
func FromSource(err error, source string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Source == source
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// GetURL extracts the offending URL or path from an error, if available.
func GetURL(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.URL
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// RateLimitedError provides additional information for rate-limited responses.
type RateLimitedError struct {
	RetryAfter int // Seconds to wait before retrying
	Message    string
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %d seconds", e.RetryAfter)
	}
	return "rate limited"
}

// Code returns the error code for this error type.
func (e *RateLimitedError) Code() Code {
	return ErrCodeRateLimited
}
