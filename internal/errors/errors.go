package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeValidation  = "E100"
	CodeDatabase    = "E200"
	CodeExternalAPI = "E300"
	CodeState       = "E400"
	CodeNotFound    = "E404"
	CodeRateLimit   = "E500"
)

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     msg,
		UserMessage: msg,
		Severity:    SeverityLow,
	}
}

// WrapValidation keeps the underlying validation error reachable with errors.Is.
func WrapValidation(cause error) *AppError {
	appErr := NewValidationError(cause.Error())
	appErr.cause = cause
	return appErr
}

func NewNotFoundError(entity string, cause error) *AppError {
	return &AppError{
		Code:        CodeNotFound,
		Message:     fmt.Sprintf("%s not found", entity),
		UserMessage: fmt.Sprintf("%s not found", entity),
		Severity:    SeverityLow,
		cause:       cause,
	}
}

func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        CodeDatabase,
		Message:     fmt.Sprintf("database error: %s", underlyingMsg),
		UserMessage: "Temporary problem, please try again later",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	msg := fmt.Sprintf("external API error: %s", apiName)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}

	return &AppError{
		Code:        CodeExternalAPI,
		Message:     msg,
		UserMessage: "Service temporarily unavailable",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewPermanentExternalAPIError reports an upstream rejection that retrying cannot fix.
func NewPermanentExternalAPIError(apiName string, cause error) *AppError {
	appErr := NewExternalAPIError(apiName, cause)
	appErr.Retryable = false
	appErr.Severity = SeverityLow
	return appErr
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        CodeState,
		Message:     msg,
		UserMessage: "Operation is not possible in the current state",
		Severity:    SeverityMedium,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        CodeRateLimit,
		Message:     fmt.Sprintf("rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("Too many requests. Try again in %d seconds", retryAfter),
		Severity:    SeverityLow,
	}
}
