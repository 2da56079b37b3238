package engine

import "errors"

var (
	// ErrRateLimited means admission control rejected the request before
	// any pipeline stage ran. Also returned when the work queue is full.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrNotInitialized means the engine was used before Start.
	ErrNotInitialized = errors.New("engine not initialized")

	// ErrTimeout means the assessment did not complete within the
	// configured budget. The work item may still complete in the
	// background.
	ErrTimeout = errors.New("assessment timed out")
)
