package es

import "fmt"

// ValidationError indicates a malformed event batch: non-contiguous versions,
// mixed aggregate or tenant IDs within one batch, or a version below 1.
// Validation failures occur before any persistence attempt and are never
// retried.
type ValidationError struct {
	// AggregateID and TenantID identify the batch, taken from its first event.
	AggregateID string
	TenantID    string

	// Index is the position of the offending event within the batch.
	Index int

	// Version is the offending event's version.
	Version int64

	// Reason describes the violated precondition.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event batch (aggregate=%s tenant=%s index=%d version=%d): %s",
		e.AggregateID, e.TenantID, e.Index, e.Version, e.Reason)
}

// VersionConflictError indicates optimistic-concurrency contention: another
// writer committed one of the batch's versions first, and the configured
// retries were exhausted. The caller should reload the aggregate, reapply
// its business logic against the now-current state, and retry.
type VersionConflictError struct {
	AggregateID string
	TenantID    string

	// Version is the first version of the batch that failed to commit.
	Version int64

	// Attempts is the total number of append attempts made.
	Attempts int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict appending version %d for aggregate %s (tenant %s) after %d attempts",
		e.Version, e.AggregateID, e.TenantID, e.Attempts)
}

// StoreError wraps any persistence failure other than a version conflict:
// connectivity, timeout, serialization. It is fatal for the current operation
// unless a degradation path is explicitly engaged.
type StoreError struct {
	// Op is the store operation that failed ("append", "load", ...).
	Op string

	AggregateID string
	TenantID    string

	// Attempt is the attempt number on which the failure occurred (1-based).
	Attempt int

	// Deferred reports whether the batch was captured in a dead-letter
	// queue for later replay. The operation still failed; the events are
	// just not lost.
	Deferred bool

	// Err is the underlying failure.
	Err error
}

func (e *StoreError) Error() string {
	if e.Deferred {
		return fmt.Sprintf("%s failed for aggregate %s (tenant %s, attempt %d), batch dead-lettered: %v",
			e.Op, e.AggregateID, e.TenantID, e.Attempt, e.Err)
	}
	return fmt.Sprintf("%s failed for aggregate %s (tenant %s, attempt %d): %v",
		e.Op, e.AggregateID, e.TenantID, e.Attempt, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
