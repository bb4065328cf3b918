// Package errs defines the typed errors shared by the recall subsystems.
// Every propagated error carries the operation that failed, a machine-readable
// code for retry policy, and enough context (project, path, timestamp) to act on.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// Code identifies an error class for programmatic handling.
type Code string

const (
	CodeNotFound        Code = "not_found"
	CodeCorruptStore    Code = "corrupt_store"
	CodeCooldownActive  Code = "cooldown_active"
	CodeSourceNotFound  Code = "source_not_found"
	CodeBackupNotFound  Code = "backup_not_found"
	CodeBackupCorrupted Code = "backup_corrupted"
	CodeVectorShape     Code = "vector_shape"
	CodeFilesystem      Code = "filesystem"
)

// Error is the structured error type for all recall operations.
type Error struct {
	Op         string    // operation that failed, e.g. "store.read"
	Code       Code      // machine-readable class
	Project    string    // affected project, if any
	Title      string    // affected memory title, if any
	Path       string    // affected file path, if any
	Time       time.Time // when the error occurred
	Message    string    // human-readable explanation
	Suggestion string    // actionable next step for the caller
	Err        error     // wrapped cause, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Code)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with the timestamp set to now.
func New(op string, code Code, message string) *Error {
	return &Error{Op: op, Code: code, Message: message, Time: time.Now()}
}

// Wrap builds an Error around an underlying cause.
func Wrap(op string, code Code, message string, err error) *Error {
	return &Error{Op: op, Code: code, Message: message, Time: time.Now(), Err: err}
}

// WithProject attaches the affected project name.
func (e *Error) WithProject(project string) *Error {
	e.Project = project
	return e
}

// WithTitle attaches the affected memory title.
func (e *Error) WithTitle(title string) *Error {
	e.Title = title
	return e
}

// WithPath attaches the affected file path.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithSuggestion attaches an actionable suggestion.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// CodeOf returns the Code carried by err, or "" if err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsNotFound reports whether err is a not-found error of any flavor.
func IsNotFound(err error) bool {
	switch CodeOf(err) {
	case CodeNotFound, CodeSourceNotFound, CodeBackupNotFound:
		return true
	}
	return false
}

// Retryable reports whether the error class is worth retrying with backoff.
// Only filesystem-level failures qualify; everything else needs caller action.
func Retryable(err error) bool {
	return CodeOf(err) == CodeFilesystem
}
