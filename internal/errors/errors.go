// Package errors defines the bot's error taxonomy and the helpers that report
// and recover from those errors.
package errors

import (
	"errors"
	"fmt"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error codes. The presentation layer looks up "errors.<code>" in the
// translation catalog and falls back to UserMessage.
const (
	CodeValidation        = "E100"
	CodeDatabase          = "E200"
	CodeGateway           = "E300"
	CodeState             = "E400"
	CodeRateLimit         = "E500"
	CodeConfiguration     = "E600"
	CodePartialSubmission = "E700"
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

	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// NewValidationError reports bad user input: image format or size, empty edit text.
func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     msg,
		UserMessage: fmt.Sprintf("Invalid input. %s", msg),
		Severity:    SeverityLow,
	}
}

func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        CodeDatabase,
		Message:     fmt.Sprintf("Database error: %s", underlyingMsg),
		UserMessage: "Temporary problem, please try again later.",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewGatewayError reports a failed call to HomeBox or the vision API:
// timeout, transport error, unexpected status or malformed response.
func NewGatewayError(gateway string, retryable bool, cause error) *AppError {
	return &AppError{
		Code:        CodeGateway,
		Message:     fmt.Sprintf("%s gateway error", gateway),
		UserMessage: "The service is temporarily unavailable. Please try again.",
		Severity:    SeverityMedium,
		Retryable:   retryable,
		cause:       cause,
	}
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        CodeState,
		Message:     msg,
		UserMessage: "This action is not available right now.",
		Severity:    SeverityLow,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        CodeRateLimit,
		Message:     fmt.Sprintf("Rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfter),
		Severity:    SeverityLow,
	}
}

// NewConfigurationError reports a rejected settings value; the previous value stays in effect.
func NewConfigurationError(field, value string) *AppError {
	return &AppError{
		Code:        CodeConfiguration,
		Message:     fmt.Sprintf("invalid %s value %q", field, value),
		UserMessage: "This option is not available.",
		Severity:    SeverityLow,
	}
}

// NewPartialSubmissionError reports an item that was created while its photo
// could not be attached. The item is kept.
func NewPartialSubmissionError(itemID string, cause error) *AppError {
	return &AppError{
		Code:        CodePartialSubmission,
		Message:     fmt.Sprintf("item %s created without photo", itemID),
		UserMessage: "The item was created, but the photo could not be attached.",
		Severity:    SeverityMedium,
		cause:       cause,
	}
}

// CodeOf returns the AppError code in err's chain, or "" if there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Code
	}
	return ""
}

func IsValidation(err error) bool { return CodeOf(err) == CodeValidation }

func IsGateway(err error) bool { return CodeOf(err) == CodeGateway }

func IsConfiguration(err error) bool { return CodeOf(err) == CodeConfiguration }

func IsPartialSubmission(err error) bool { return CodeOf(err) == CodePartialSubmission }
