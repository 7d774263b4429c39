package dto

import "net/http"

// Error code constants, format: ERR_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the account lacks the required role
	ErrCodeForbidden = "ERR_FORBIDDEN"
	// ErrCodeTokenExpired is used when the auth token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	// ErrCodeTokenInvalid is used when the auth token is invalid
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
)

// Billing and screening error codes
const (
	// ErrCodeQuotaExceeded is used when the free analysis quota is exhausted
	ErrCodeQuotaExceeded = "ERR_QUOTA_EXCEEDED"
	// ErrCodeInvalidSignature is used when webhook signature verification fails
	ErrCodeInvalidSignature = "ERR_INVALID_SIGNATURE"
	// ErrCodeStoreUnavailable is used when the data store rejects writes transiently
	ErrCodeStoreUnavailable = "ERR_STORE_UNAVAILABLE"
	// ErrCodeAnalysisUpstream is used when the analysis service fails after retries
	ErrCodeAnalysisUpstream = "ERR_ANALYSIS_UPSTREAM"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when the per-client rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,

	// Quota exhaustion asks for payment, not a retry
	ErrCodeQuotaExceeded:    http.StatusPaymentRequired,
	ErrCodeInvalidSignature: http.StatusBadRequest,
	ErrCodeStoreUnavailable: http.StatusServiceUnavailable,
	ErrCodeAnalysisUpstream: http.StatusBadGateway,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":         ErrCodeNotFound,
	"ALREADY_EXISTS":    ErrCodeAlreadyExists,
	"INVALID_INPUT":     ErrCodeInvalidInput,
	"UNAUTHORIZED":      ErrCodeUnauthorized,
	"FORBIDDEN":         ErrCodeForbidden,
	"QUOTA_EXCEEDED":    ErrCodeQuotaExceeded,
	"INVALID_SIGNATURE": ErrCodeInvalidSignature,
	"STORE_UNAVAILABLE": ErrCodeStoreUnavailable,
	"ANALYSIS_UPSTREAM": ErrCodeAnalysisUpstream,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Unknown codes pass through as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
