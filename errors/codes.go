package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

// Error categories define how errors should be handled.
const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	// Examples: network timeouts, temporary store unavailability.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	// Examples: invalid input, removed or region-locked videos.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryResource indicates resource exhaustion or quota issues.
	// Examples: store API rate limiting, quota exceeded.
	CategoryResource ErrorCategory = "resource"

	// CategoryInternal indicates unexpected errors, bugs, or system failures.
	// Examples: nil pointer, corrupted row state, recovered panics.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	switch c {
	case CategoryTransient, CategoryResource:
		return true
	default:
		return false
	}
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

// Error codes for common failure scenarios.
const (
	// Transient errors
	ErrCodeTimeout     ErrorCode = "TIMEOUT"     // Operation timed out
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE" // Store temporarily unavailable
	ErrCodeNetworkErr  ErrorCode = "NETWORK_ERR" // Network connectivity issue

	// Permanent errors
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"     // Row or resource does not exist
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT" // Malformed or invalid input
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"  // Store credentials rejected
	ErrCodeCanceled     ErrorCode = "CANCELED"      // Operation was canceled
	ErrCodeFatalContent ErrorCode = "FATAL_CONTENT" // Content failure matched a fatal marker

	// Resource errors
	ErrCodeRateLimit     ErrorCode = "RATE_LIMITED"   // Store rate limit exceeded
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED" // Store API quota exhausted

	// Internal errors
	ErrCodeInternal ErrorCode = "INTERNAL" // Unexpected internal error
	ErrCodePanic    ErrorCode = "PANIC"    // Recovered from panic

	// Coordination errors
	ErrCodeStalled    ErrorCode = "STALLED"           // Row abandoned past the stall timeout
	ErrCodeResolution ErrorCode = "RESOLUTION_FAILED" // Resolver could not expand a source
	ErrCodeProcessing ErrorCode = "PROCESSING_FAILED" // Caller-supplied processing failed
	ErrCodeImport     ErrorCode = "IMPORT_FAILED"     // Source file import failed
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	// Transient
	case ErrCodeTimeout, ErrCodeUnavailable, ErrCodeNetworkErr:
		return CategoryTransient

	// Permanent
	case ErrCodeNotFound, ErrCodeInvalidInput, ErrCodeUnauthorized,
		ErrCodeCanceled, ErrCodeFatalContent:
		return CategoryPermanent

	// Resource
	case ErrCodeRateLimit, ErrCodeQuotaExceeded:
		return CategoryResource

	// Internal
	case ErrCodeInternal, ErrCodePanic:
		return CategoryInternal

	// Coordination failures are retried through the pending/retry-count path
	// unless classified fatal by the lifecycle manager.
	case ErrCodeStalled, ErrCodeResolution, ErrCodeProcessing, ErrCodeImport:
		return CategoryTransient

	default:
		return CategoryInternal
	}
}

// DefaultRetryable returns whether this error code is typically retryable.
func (c ErrorCode) DefaultRetryable() bool {
	return c.DefaultCategory().IsRetryable()
}

// codeDescriptions provides human-readable descriptions for error codes.
var codeDescriptions = map[ErrorCode]string{
	ErrCodeTimeout:       "operation timed out",
	ErrCodeUnavailable:   "store temporarily unavailable",
	ErrCodeNetworkErr:    "network connectivity error",
	ErrCodeNotFound:      "row not found",
	ErrCodeInvalidInput:  "invalid input provided",
	ErrCodeUnauthorized:  "store credentials rejected",
	ErrCodeCanceled:      "operation canceled",
	ErrCodeFatalContent:  "content failure is not recoverable",
	ErrCodeRateLimit:     "rate limit exceeded",
	ErrCodeQuotaExceeded: "store quota exceeded",
	ErrCodeInternal:      "internal error",
	ErrCodePanic:         "recovered from panic",
	ErrCodeStalled:       "row stalled past timeout",
	ErrCodeResolution:    "source resolution failed",
	ErrCodeProcessing:    "task processing failed",
	ErrCodeImport:        "source import failed",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
