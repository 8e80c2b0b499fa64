package errors

import (
	stderrors "errors"
)

type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypePrecondition ErrorType = "PRECONDITION"
	ErrorTypeIO           ErrorType = "IO"
	ErrorTypeInvariant    ErrorType = "INVARIANT"
	ErrorTypeCorrupt      ErrorType = "CORRUPT"
)

// Error is the user-facing error carried out of the core. Message is what
// the CLI prints as its status line.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NotFound(message string) *Error {
	return &Error{Type: ErrorTypeNotFound, Message: message}
}

func Precondition(message string) *Error {
	return &Error{Type: ErrorTypePrecondition, Message: message}
}

func IO(message string, cause error) *Error {
	return &Error{Type: ErrorTypeIO, Message: message, Cause: cause}
}

func Invariant(message string) *Error {
	return &Error{Type: ErrorTypeInvariant, Message: message}
}

func Corrupt(message string, cause error) *Error {
	return &Error{Type: ErrorTypeCorrupt, Message: message, Cause: cause}
}

// IsType reports whether any error in err's chain is an *Error of type t.
func IsType(err error, t ErrorType) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == t
	}
	return false
}
