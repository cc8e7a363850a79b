package dto

import (
	"net/http"

	"github.com/deliverysync/backend/internal/domain/delivery"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	// ErrCodeRateLimited is used when a client exceeds its request rate
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// Input error codes
const (
	// ErrCodeValidation is used for invalid request input
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeInvalidJSON is used when the body cannot be decoded
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when the restaurant context is missing
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeTokenExpired is used when the bearer token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	// ErrCodeTokenInvalid is used when the bearer token cannot be verified
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	ErrCodeNotFound   = "ERR_NOT_FOUND"
	ErrCodeConflict   = "ERR_CONFLICT"
	ErrCodeInProgress = "ERR_IN_PROGRESS"
)

// Portal automation error codes
const (
	// ErrCodeSessionInvalid is used when a portal session must be re-initialized
	ErrCodeSessionInvalid = "ERR_SESSION_INVALID"
	// ErrCodePortalNavigation is used when the portal UI did not match expectations
	ErrCodePortalNavigation = "ERR_PORTAL_NAVIGATION"
	// ErrCodePortalUnreachable is used for network failures talking to a portal
	ErrCodePortalUnreachable = "ERR_PORTAL_UNREACHABLE"
	// ErrCodeTimeout is used when an operation exhausted its time budget
	ErrCodeTimeout = "ERR_TIMEOUT"
	// ErrCodeLoginRejected is used when a portal refused the username or password
	ErrCodeLoginRejected = "ERR_LOGIN_REJECTED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,

	// Conflicting credentials are reported as bad input
	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeInvalidJSON: http.StatusBadRequest,
	ErrCodeConflict:    http.StatusBadRequest,

	ErrCodeLoginRejected: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound:   http.StatusNotFound,
	ErrCodeInProgress: http.StatusConflict,
	ErrCodeTimeout:    http.StatusRequestTimeout,

	// Portal failures are upstream failures
	ErrCodeSessionInvalid:    http.StatusBadGateway,
	ErrCodePortalNavigation:  http.StatusBadGateway,
	ErrCodePortalUnreachable: http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// kindCodes maps delivery error kinds to API error codes
var kindCodes = map[delivery.ErrorKind]string{
	delivery.KindValidation:         ErrCodeValidation,
	delivery.KindAuthContext:        ErrCodeUnauthorized,
	delivery.KindNotFound:           ErrCodeNotFound,
	delivery.KindCredentialConflict: ErrCodeConflict,
	delivery.KindSessionInvalid:     ErrCodeSessionInvalid,
	delivery.KindNavigation:         ErrCodePortalNavigation,
	delivery.KindTimeout:            ErrCodeTimeout,
	delivery.KindNetwork:            ErrCodePortalUnreachable,
	delivery.KindInProgress:         ErrCodeInProgress,
	delivery.KindLoginRejected:      ErrCodeLoginRejected,
}

// CodeForKind returns the API error code for a delivery error kind.
// Unknown kinds map to ERR_INTERNAL.
func CodeForKind(kind delivery.ErrorKind) string {
	if code, ok := kindCodes[kind]; ok {
		return code
	}
	return ErrCodeInternal
}
