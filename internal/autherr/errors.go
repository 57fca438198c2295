// Package autherr defines the structured error taxonomy shared by the
// auth providers, the facade and the API client.
package autherr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a failure class. The set is closed; callers switch on
// it instead of probing error shapes.
type Code string

const (
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeEmailExists        Code = "EMAIL_EXISTS"
	CodeInvalidCode        Code = "INVALID_CODE"
	CodeNoPendingChallenge Code = "NO_PENDING_CHALLENGE"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodeRequestTimeout     Code = "REQUEST_TIMEOUT"
	CodeSessionExpired     Code = "SESSION_EXPIRED"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeUnknownProvider    Code = "UNKNOWN_PROVIDER"
	CodeUnexpected         Code = "UNEXPECTED_ERROR"
)

// friendlyMessages maps codes to user-presentable text. Unknown codes
// fall back to a generic message.
var friendlyMessages = map[Code]string{
	CodeInvalidCredentials: "Invalid email or password. Please try again.",
	CodeEmailExists:        "An account with this email already exists. Please use a different email address.",
	CodeInvalidCode:        "The verification code you entered is invalid. Please try again.",
	CodeNoPendingChallenge: "No pending verification was found. Please start the sign-in again.",
	CodeRateLimitExceeded:  "Too many attempts. Please try again later.",
	CodeRequestTimeout:     "The request timed out. Please check your connection and try again.",
	CodeSessionExpired:     "Your session has expired. Please sign in again.",
	CodeUnauthorized:       "Your authentication is invalid. Please sign in again.",
	CodeUnknownProvider:    "The selected sign-in method is not available.",
	CodeUnexpected:         "An unexpected error occurred. Please try again later.",
}

const genericFriendly = "An error occurred. Please try again later."

// Error is the wire and domain error shape: a machine code, an HTTP
// status, optional details and a user-presentable message.
type Error struct {
	Code     Code           `json:"code"`
	Message  string         `json:"message"`
	Status   int            `json:"-"`
	Details  map[string]any `json:"details,omitempty"`
	Friendly string         `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds an Error with the friendly message resolved from the
// static table.
func New(code Code, status int, message string) *Error {
	friendly, ok := friendlyMessages[code]
	if !ok {
		friendly = genericFriendly
	}
	return &Error{Code: code, Message: message, Status: status, Friendly: friendly}
}

// WithDetails attaches structured details and returns the same error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// InvalidCredentials reports a failed identity lookup.
func InvalidCredentials() *Error {
	return New(CodeInvalidCredentials, http.StatusUnauthorized, "invalid email or password")
}

// EmailExists reports a duplicate registration.
func EmailExists() *Error {
	return New(CodeEmailExists, http.StatusConflict, "email already in use")
}

// InvalidCode reports a verification code that failed validation.
func InvalidCode() *Error {
	return New(CodeInvalidCode, http.StatusUnauthorized, "invalid verification code")
}

// NoPendingChallenge reports a verification attempt with no matching
// first step.
func NoPendingChallenge() *Error {
	return New(CodeNoPendingChallenge, http.StatusConflict, "no pending verification found")
}

// RateLimited reports an exhausted attempt counter. reset is the unix
// second at which the counter becomes usable again.
func RateLimited(limit int, reset int64, resetIn int) *Error {
	err := New(CodeRateLimitExceeded, http.StatusTooManyRequests, "too many attempts, please try again later")
	return err.WithDetails(map[string]any{
		"limit":          limit,
		"reset":          reset,
		"resetInSeconds": resetIn,
	})
}

// UnknownProvider reports a provider name with no registration.
func UnknownProvider(name string) *Error {
	return New(CodeUnknownProvider, http.StatusBadRequest, fmt.Sprintf("auth provider %q not found", name))
}

// Unexpected wraps an arbitrary failure into the taxonomy.
func Unexpected(err error) *Error {
	msg := "an unexpected error occurred"
	if err != nil {
		msg = err.Error()
	}
	return New(CodeUnexpected, http.StatusInternalServerError, msg)
}

// CodeOf extracts the taxonomy code from err, or CodeUnexpected when
// err carries none.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnexpected
}

// StatusOf extracts the HTTP status from err, defaulting to 500.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// FriendlyOf returns the user-presentable message for err.
func FriendlyOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Friendly != "" {
		return ae.Friendly
	}
	return genericFriendly
}
