package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Permission errors
const (
	// ErrCodePermissionDenied indicates the user refused at least one requested permission.
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	// ErrCodeIgnorable marks a suppressed failure that downstream code should treat as a no-op.
	ErrCodeIgnorable ErrorCode = "IGNORABLE"
	// ErrCodeRequestFailed indicates the permission prompt could not be triggered.
	ErrCodeRequestFailed ErrorCode = "REQUEST_FAILED"
)

// Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates the operation was canceled or timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeRateLimited indicates the caller exceeded a request budget.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Authentication errors
const (
	// ErrCodeUnauthorized indicates the request is unauthorized.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeInvalidToken indicates the bearer token is invalid.
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeRequestFailed:      true,
	ErrCodeRateLimited:        true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
// A denial is final for the attempt; the caller re-invokes the gate to prompt again.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
