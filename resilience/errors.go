package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrTimeout is returned when a single attempt exceeds its
	// deadline. It is retryable under the default retry predicate.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrMaxRetriesExceeded wraps the last attempt's error once all
	// attempts are exhausted. Both it and the underlying error match
	// with errors.Is.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")
)
