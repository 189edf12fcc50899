package exitcode

import (
	"os"
	"strings"

	"github.com/felixgeelhaar/canvass/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// AuthError indicates a missing login or a rejected session token
	AuthError = 3

	// NotFound indicates an unknown questionnaire or file
	NotFound = 4

	// SubmissionError indicates the backend did not accept the answers
	SubmissionError = 5

	// NetworkError indicates the backend could not be reached
	NetworkError = 6

	// ConfigError indicates invalid configuration
	ConfigError = 7

	// Interrupted indicates the user cancelled with Ctrl+C
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps an error to an exit code. Coded errors are mapped
// by code; anything else falls back to matching the message, which is how
// cobra's usage errors arrive.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch code := errors.CodeOf(err); code {
	case errors.ErrCodeIdentityNotLoggedIn, errors.ErrCodeIdentityToken, errors.ErrCodeAPIUnauthorized:
		return AuthError
	case errors.ErrCodeQuestionnaireNotFound, errors.ErrCodeFileNotFound:
		return NotFound
	case errors.ErrCodeFlowSubmission, errors.ErrCodeAPIStatus, errors.ErrCodeResponseInvalid:
		return SubmissionError
	case errors.ErrCodeAPITransport, errors.ErrCodeStoreUnavailable:
		return NetworkError
	case errors.ErrCodeConfigInvalid:
		return ConfigError
	case errors.ErrCodeIdentityInvalid:
		return UsageError
	case "":
	default:
		return GeneralError
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "unauthorized") || strings.Contains(errMsg, "not logged in") {
		return AuthError
	}
	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "timeout") {
		return NetworkError
	}
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown command") ||
		strings.Contains(errMsg, "invalid argument") || strings.Contains(errMsg, "required flag") ||
		strings.Contains(errMsg, "accepts ") || strings.Contains(errMsg, "requires at least") {
		return UsageError
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case AuthError:
		return "Authentication error"
	case NotFound:
		return "Not found"
	case SubmissionError:
		return "Submission rejected"
	case NetworkError:
		return "Network error"
	case ConfigError:
		return "Configuration error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
