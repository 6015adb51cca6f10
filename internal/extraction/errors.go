// Package extraction obtains structured invoice data, either from the remote
// extraction provider over HTTP or from local rule templates.
package extraction

import "fmt"

// ErrorCode classifies extraction failures. All are fatal for the run; the
// caller may re-trigger the run explicitly, nothing retries automatically.
type ErrorCode string

const (
	// ErrInput covers a missing or malformed source file or settings.
	ErrInput ErrorCode = "INPUT_ERROR"
	// ErrProvider covers non-200 responses and malformed provider JSON.
	ErrProvider ErrorCode = "PROVIDER_ERROR"
	// ErrValidation covers payloads missing the required structure.
	ErrValidation ErrorCode = "VALIDATION_ERROR"
)

// Error is a structured extraction failure.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func inputErr(msg string, cause error) *Error {
	return &Error{Code: ErrInput, Message: msg, Cause: cause}
}

func providerErr(msg string, cause error) *Error {
	return &Error{Code: ErrProvider, Message: msg, Cause: cause}
}

func validationErr(msg string) *Error {
	return &Error{Code: ErrValidation, Message: msg}
}
