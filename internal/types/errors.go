// Package types holds the shared domain vocabulary of the streamnotify
// pipeline: message envelopes exchanged between the Lambda stages, the
// error taxonomy, and the redacted secret type used by configuration.
package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Components wrap collaborator failures in one of
// these instead of returning bare errors, so the trigger layer can log a
// stable category.
const (
	// Upstream collaborators (surface to the trigger, which redelivers).
	ErrCodeUpstreamYouTube ErrorCode = "upstream_youtube"
	ErrCodeUpstreamTwitter ErrorCode = "upstream_twitter"
	ErrCodeUpstreamSNS     ErrorCode = "upstream_sns"
	ErrCodeUpstreamEvents  ErrorCode = "upstream_events"

	// Persistence.
	ErrCodeLedgerRead     ErrorCode = "ledger_read_failed"
	ErrCodeLedgerWrite    ErrorCode = "ledger_write_failed"
	ErrCodeNotFoundMaster ErrorCode = "not_found_master_row"

	// Startup.
	ErrCodeConfigMissing ErrorCode = "config_missing_value"
	ErrCodeConfigInvalid ErrorCode = "config_invalid_value"

	// Catch-all.
	ErrCodeInternal ErrorCode = "internal_unexpected_error"
)

// ErrNotFound is the sentinel for a ledger lookup that found no master row
// for the entity. It is wrapped by AppError with ErrCodeNotFoundMaster so
// callers can test with errors.Is.
var ErrNotFound = errors.New("not found")

// AppError is the standard error envelope. It carries a stable code for
// logging and the wrapped cause for errors.Is/As chains.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError wrapping err (which may be nil).
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// IsNotFound reports whether err represents a missing ledger master row.
// A master row pointing at a version row that does not exist is reported
// the same way: the entity is treated as unseen and the next poll cycle
// re-detects it.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// CodeOf extracts the ErrorCode from err, or ErrCodeInternal when err is
// not an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}
