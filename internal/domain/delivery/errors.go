package delivery

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies automation failures. The kind decides retry policy and
// how the failure is presented to the operator.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindAuthContext        ErrorKind = "auth_context"
	KindNotFound           ErrorKind = "not_found"
	KindCredentialConflict ErrorKind = "credential_conflict"
	KindSessionInvalid     ErrorKind = "session_invalid"
	KindLoginRejected      ErrorKind = "login_rejected"
	KindNavigation         ErrorKind = "navigation"
	KindTimeout            ErrorKind = "timeout"
	KindNetwork            ErrorKind = "network"
	KindInProgress         ErrorKind = "in_progress"
)

// Error is the error type returned across the delivery context. Message is
// always safe to show to an operator; Err carries the underlying cause.
type Error struct {
	Kind     ErrorKind
	Platform Platform
	Message  string
	Err      error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so callers can write errors.Is(err, delivery.ErrSessionInvalid).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrValidation          = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrAuthContext         = &Error{Kind: KindAuthContext, Message: "restaurant context is required"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrCredentialConflict  = &Error{Kind: KindCredentialConflict, Message: "credentials already exist"}
	ErrSessionInvalid      = &Error{Kind: KindSessionInvalid, Message: "session is invalid"}
	ErrLoginRejected       = &Error{Kind: KindLoginRejected, Message: "login rejected"}
	ErrNavigation          = &Error{Kind: KindNavigation, Message: "portal navigation failed"}
	ErrTimeout             = &Error{Kind: KindTimeout, Message: "operation timed out"}
	ErrNetwork             = &Error{Kind: KindNetwork, Message: "network error"}
	ErrOperationInProgress = &Error{Kind: KindInProgress, Message: "operation in progress"}
)

// NewValidationError returns a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError returns a NotFoundError for the given key.
func NewNotFoundError(what string, restaurantID string, platform Platform) *Error {
	return &Error{
		Kind:     KindNotFound,
		Platform: platform,
		Message:  fmt.Sprintf("no %s found for restaurant %s on %s", what, restaurantID, platform.DisplayName()),
	}
}

// NewCredentialConflictError reports a duplicate credential create.
func NewCredentialConflictError(platform Platform) *Error {
	return &Error{
		Kind:     KindCredentialConflict,
		Platform: platform,
		Message:  fmt.Sprintf("%s credentials already exist; update or delete them instead", platform.DisplayName()),
	}
}

// NewSessionInvalidError reports a session the portal or the age limit rejected.
func NewSessionInvalidError(platform Platform, reason string) *Error {
	return &Error{
		Kind:     KindSessionInvalid,
		Platform: platform,
		Message:  fmt.Sprintf("%s session %s, please re-initialize the session", platform.DisplayName(), reason),
	}
}

// NewLoginRejectedError reports a login form the portal answered with an
// error message.
func NewLoginRejectedError(platform Platform) *Error {
	return &Error{
		Kind:     KindLoginRejected,
		Platform: platform,
		Message:  fmt.Sprintf("%s rejected the username or password", platform.DisplayName()),
	}
}

// NewNavigationError reports portal UI drift: a page or element the driver
// expected was not there.
func NewNavigationError(platform Platform, step string, err error) *Error {
	return &Error{
		Kind:     KindNavigation,
		Platform: platform,
		Message:  fmt.Sprintf("%s portal changed or did not load as expected (%s)", platform.DisplayName(), step),
		Err:      err,
	}
}

// NewNetworkError reports a transient connectivity failure.
func NewNetworkError(platform Platform, err error) *Error {
	return &Error{
		Kind:     KindNetwork,
		Platform: platform,
		Message:  fmt.Sprintf("could not reach %s, try again shortly", platform.DisplayName()),
		Err:      err,
	}
}

// NewTimeoutError reports an exhausted time budget.
func NewTimeoutError(platform Platform, operation string) *Error {
	return &Error{
		Kind:     KindTimeout,
		Platform: platform,
		Message:  fmt.Sprintf("%s %s did not finish in time", platform.DisplayName(), operation),
	}
}

// NewOperationInProgressError reports a held per-key lock.
func NewOperationInProgressError(restaurantID string, platform Platform) *Error {
	return &Error{
		Kind:     KindInProgress,
		Platform: platform,
		Message:  fmt.Sprintf("another %s operation is in progress for restaurant %s", platform.DisplayName(), restaurantID),
	}
}

// KindOf returns the kind of err, or "" when err is not a delivery error.
// Context expiry is reported as a timeout.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return ""
}

// IsRetryable reports whether err may succeed if the same step is repeated.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindNavigation:
		return true
	default:
		return false
	}
}

// UserMessage extracts an operator-facing message from any error.
func UserMessage(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "operation did not finish in time"
	}
	return "unexpected error, check the server logs"
}
