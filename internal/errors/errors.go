package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is an application-specific error type
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// wraps an error with a code and message
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or CodeInternal
// when the chain carries none.
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HasCode reports whether any AppError in err's chain carries code
func HasCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// UserMessage returns the text shown to observers for a failed analysis.
// The innermost cause is included so engine-reported reasons reach the user.
func UserMessage(err error) string {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return err.Error()
	}
	if appErr.Cause == nil {
		return appErr.Message
	}
	return appErr.Message + ": " + UserMessage(appErr.Cause)
}

// Error code constants
const (
	CodeInternal   = "INTERNAL_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeInvalidArg = "INVALID_ARGUMENT"
	CodeExternal   = "EXTERNAL_ERROR"
	CodeConflict   = "CONFLICT"         // Resource already exists (UNIQUE violation)
	CodeDependency = "DEPENDENCY_ERROR" // Foreign key constraint violation

	// Analysis failure taxonomy
	CodeTransport        = "TRANSPORT_ERROR"    // Engine cannot be reached at all
	CodeEngine           = "ENGINE_ERROR"       // Engine ran and reported failure
	CodeMalformed        = "MALFORMED_RESPONSE" // Engine output is not a valid artifact
	CodeReadinessTimeout = "READINESS_TIMEOUT"  // Engine surface never became ready
	CodeTimeout          = "TIMEOUT"            // Engine accepted the job but never answered
	CodeStorage          = "STORAGE_ERROR"      // Persistent store read/write failure
)
