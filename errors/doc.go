// Package errors provides the structured error taxonomy used across the
// coordination kit. Claim races, stalled rows, resolver failures, and store
// errors all carry a code and a category so callers can decide between retry,
// dead-letter, and surfacing to the process supervisor.
//
// # Error Categories
//
// Errors are classified into four categories:
//
//   - Transient: Temporary failures where retry may succeed (network issues, etc.)
//   - Permanent: Failures where retry will not help (invalid input, removed video, etc.)
//   - Resource: Resource exhaustion issues (store rate limits, quotas)
//   - Internal: Unexpected errors indicating bugs or system failures
//
// # Usage
//
// Create a new error:
//
//	err := errors.New(errors.ErrCodeResolution, "yt-dlp exited with status 1")
//
// Wrap an existing error with context:
//
//	wrapped := errors.Wrap(err, "expanding source")
//
// Check if an error is retryable:
//
//	if errors.IsRetryable(err) {
//	    // reset to pending
//	}
//
// Claim races are deliberately NOT errors in this taxonomy: losing a
// claim-then-reread race is an expected outcome and is reported through the
// claim package's ErrNoWork sentinel, not through a structured error.
package errors
