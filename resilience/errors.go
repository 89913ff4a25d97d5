package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrMaxRetriesExceeded names exhausted retry attempts. Retry.Execute
	// does not return it; once attempts run out it returns the last error.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrRateLimitExceeded is returned when the rate limit is exceeded.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when the bulkhead is at capacity and
	// MaxWait is zero, or a wait timed out.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrCapacityExceeded is returned when a bulkhead's bounded waiter
	// queue (MaxQueued) is already full.
	ErrCapacityExceeded = errors.New("resilience: capacity exceeded")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrNoFallbacksSucceeded is returned by WithFallback/WithChain when the
	// primary operation and every fallback returned an error.
	ErrNoFallbacksSucceeded = errors.New("resilience: all fallbacks failed")
)
