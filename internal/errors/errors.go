package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Answer flow errors (FLOW-001 to FLOW-099)
	ErrCodeFlowUnknownQuestion  ErrorCode = "FLOW-001"
	ErrCodeFlowCategoryMismatch ErrorCode = "FLOW-002"
	ErrCodeFlowUnknownOption    ErrorCode = "FLOW-003"
	ErrCodeFlowValidation       ErrorCode = "FLOW-004"
	ErrCodeFlowSubmission       ErrorCode = "FLOW-005"
	ErrCodeFlowClosed           ErrorCode = "FLOW-006"
	ErrCodeFlowInFlight         ErrorCode = "FLOW-007"
	ErrCodeFlowInvalidSetup     ErrorCode = "FLOW-008"

	// Questionnaire definition errors (QUESTIONNAIRE-001 to QUESTIONNAIRE-099)
	ErrCodeQuestionnaireInvalid  ErrorCode = "QUESTIONNAIRE-001"
	ErrCodeQuestionnaireNotFound ErrorCode = "QUESTIONNAIRE-002"
	ErrCodeResponseInvalid       ErrorCode = "QUESTIONNAIRE-003"

	// Identity errors (IDENTITY-001 to IDENTITY-099)
	ErrCodeIdentityNotLoggedIn ErrorCode = "IDENTITY-001"
	ErrCodeIdentityInvalid     ErrorCode = "IDENTITY-002"
	ErrCodeIdentityToken       ErrorCode = "IDENTITY-003"

	// Backend API errors (API-001 to API-099)
	ErrCodeAPITransport    ErrorCode = "API-001"
	ErrCodeAPIStatus       ErrorCode = "API-002"
	ErrCodeAPIDecode       ErrorCode = "API-003"
	ErrCodeAPIUnauthorized ErrorCode = "API-004"

	// Storage errors (STORE-001 to STORE-099)
	ErrCodeStoreUnavailable ErrorCode = "STORE-001"
	ErrCodeStoreQuery       ErrorCode = "STORE-002"
	ErrCodeStoreDriver      ErrorCode = "STORE-003"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeDirectoryFailed ErrorCode = "IO-004"
	ErrCodeFileUnmarshal   ErrorCode = "IO-005"
	ErrCodeFileMarshal     ErrorCode = "IO-006"
)

// Error is a coded error carrying optional suggestions for the user.
type Error struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

// New creates a new Error
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with a formatted message
func Newf(code ErrorCode, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a new Error wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err's chain contains an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Common error constructors for frequently used errors

// NewNotLoggedInError reports that no user identity is stored.
func NewNotLoggedInError() *Error {
	return New(ErrCodeIdentityNotLoggedIn, "no user is logged in").
		WithSuggestion("Run 'canvass login --user <id>' to sign in")
}

// NewQuestionnaireNotFoundError reports an unknown questionnaire id.
func NewQuestionnaireNotFoundError(id int) *Error {
	return Newf(ErrCodeQuestionnaireNotFound, "questionnaire not found: %d", id).
		WithSuggestion("Run 'canvass list' to see available questionnaires")
}

// NewUnauthorizedError reports a rejected or expired session token.
func NewUnauthorizedError(detail string) *Error {
	return Newf(ErrCodeAPIUnauthorized, "unauthorized: %s", detail).
		WithSuggestion("Run 'canvass login' again to refresh your session")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *Error {
	return Newf(ErrCodeFileNotFound, "file not found: %s", path).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *Error {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
