package hsmx

import "errors"

var (
	// ErrQueueCleared settles queued sends rejected by ClearQueue or
	// SendPriority before they ran.
	ErrQueueCleared = errors.New("queue cleared")

	// ErrQueueFull is returned by Send when the pending queue is at
	// capacity (backpressure).
	ErrQueueFull = errors.New("event queue full (backpressure)")

	// ErrEntryNotFound is returned by Rollback for an entry that is absent
	// or already evicted from the bounded history. This is an expected
	// outcome of bounded retention, not a programming error.
	ErrEntryNotFound = errors.New("history entry not found")

	// ErrStopped is returned by Send and Rollback after Stop.
	ErrStopped = errors.New("instance stopped")
)
