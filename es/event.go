// Package es provides core types for tenant-scoped event sourcing.
package es

import (
	"time"

	"github.com/google/uuid"
)

// StoredEvent represents a single immutable domain event.
// Events are value objects; once persisted they are never updated or deleted.
type StoredEvent struct {
	// EventID is a globally unique identifier for this event.
	// If zero, the store assigns one at append time.
	EventID uuid.UUID

	// AggregateID identifies the aggregate instance this event belongs to.
	AggregateID string

	// TenantID identifies the tenant that owns the event. Every store
	// operation is scoped to exactly one tenant; aggregate IDs may collide
	// across tenants without ever sharing a stream.
	TenantID string

	// Version is the position of this event within its aggregate's stream.
	// Versions start at 1 and increase by exactly 1 per event.
	Version int64

	// Payload contains the event data. The store treats it as opaque,
	// allowing any serialization format.
	Payload []byte

	// Metadata contains additional key/value context for the event.
	Metadata map[string]string

	// OccurredAt is when the event occurred.
	// If zero, the store assigns the current time at append time.
	OccurredAt time.Time
}

// Snapshot is a materialized capture of aggregate state at a given version.
// Snapshots only bound event-replay cost; they never change the final
// reconstituted state and never compact the underlying event log.
type Snapshot struct {
	// AggregateID identifies the aggregate instance.
	AggregateID string

	// TenantID identifies the owning tenant.
	TenantID string

	// Version is the event version through which state has been folded.
	Version int64

	// Payload contains the opaque materialized state.
	Payload []byte

	// OccurredAt is when the snapshot was taken.
	OccurredAt time.Time
}

// ValidateBatch checks the append preconditions for a batch of events:
// all events share the same aggregate and tenant, every version is >= 1,
// and versions are strictly contiguous and ascending. A nil or empty batch
// is valid (appending it is a no-op).
//
// Violations return a *ValidationError and are the caller's bug; they are
// never retried.
func ValidateBatch(events []StoredEvent) error {
	if len(events) == 0 {
		return nil
	}

	first := &events[0]
	if first.AggregateID == "" {
		return &ValidationError{Reason: "aggregate ID is empty"}
	}
	if first.TenantID == "" {
		return &ValidationError{AggregateID: first.AggregateID, Reason: "tenant ID is empty"}
	}

	for i := range events {
		e := &events[i]
		if e.AggregateID != first.AggregateID {
			return &ValidationError{
				AggregateID: first.AggregateID,
				TenantID:    first.TenantID,
				Index:       i,
				Version:     e.Version,
				Reason:      "aggregate ID mismatch within batch",
			}
		}
		if e.TenantID != first.TenantID {
			return &ValidationError{
				AggregateID: first.AggregateID,
				TenantID:    first.TenantID,
				Index:       i,
				Version:     e.Version,
				Reason:      "tenant ID mismatch within batch",
			}
		}
		if e.Version < 1 {
			return &ValidationError{
				AggregateID: first.AggregateID,
				TenantID:    first.TenantID,
				Index:       i,
				Version:     e.Version,
				Reason:      "version must be >= 1",
			}
		}
		if i > 0 && e.Version != events[i-1].Version+1 {
			return &ValidationError{
				AggregateID: first.AggregateID,
				TenantID:    first.TenantID,
				Index:       i,
				Version:     e.Version,
				Reason:      "versions must be contiguous and ascending",
			}
		}
	}

	return nil
}
