// Package snapshot provides the snapshot service: persisting and retrieving
// materialized aggregate checkpoints to bound event-replay cost. Snapshots
// are a pure optimization; saving one never deletes or compacts the
// underlying event log, and reconstitution must produce identical state with
// or without them.
package snapshot

import (
	"context"
	"errors"

	"github.com/tidemark/eventfold/es"
	"github.com/tidemark/eventfold/es/store"
)

// Config contains configuration for a snapshot Store.
type Config struct {
	// Logger is an optional logger for observability.
	// If nil, logging is disabled.
	Logger es.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Logger: nil, // No logging by default
	}
}

// Store persists and retrieves aggregate checkpoints through a
// store.SnapshotBackend, tenant-scoped like every other store operation.
type Store struct {
	backend store.SnapshotBackend
	config  Config
}

// New creates a snapshot Store over the given backend.
func New(backend store.SnapshotBackend, config Config) *Store {
	return &Store{
		backend: backend,
		config:  config,
	}
}

// Save persists a new checkpoint for the aggregate at the given event
// version. Saving the same version again replaces the stored payload.
func (s *Store) Save(ctx context.Context, snap es.Snapshot) error {
	if snap.AggregateID == "" || snap.TenantID == "" {
		return &es.ValidationError{
			AggregateID: snap.AggregateID,
			TenantID:    snap.TenantID,
			Version:     snap.Version,
			Reason:      "snapshot requires aggregate and tenant IDs",
		}
	}
	if snap.Version < 1 {
		return &es.ValidationError{
			AggregateID: snap.AggregateID,
			TenantID:    snap.TenantID,
			Version:     snap.Version,
			Reason:      "snapshot version must be >= 1",
		}
	}

	if err := s.backend.InsertSnapshot(ctx, snap); err != nil {
		return &es.StoreError{
			Op:          "saveSnapshot",
			AggregateID: snap.AggregateID,
			TenantID:    snap.TenantID,
			Attempt:     1,
			Err:         err,
		}
	}

	if s.config.Logger != nil {
		s.config.Logger.Debug(ctx, "snapshot saved",
			"aggregate_id", snap.AggregateID,
			"tenant_id", snap.TenantID,
			"version", snap.Version)
	}
	return nil
}

// Load returns the most recent snapshot for the aggregate, or
// store.ErrNoSnapshot when none exists.
func (s *Store) Load(ctx context.Context, aggregateID, tenantID string) (es.Snapshot, error) {
	return s.LoadAt(ctx, aggregateID, tenantID, 0)
}

// LoadAt returns the most recent snapshot whose version is <= atOrBefore,
// or the most recent overall when atOrBefore is 0.
// Returns store.ErrNoSnapshot when none qualifies.
func (s *Store) LoadAt(ctx context.Context, aggregateID, tenantID string, atOrBefore int64) (es.Snapshot, error) {
	snap, err := s.backend.SelectSnapshot(ctx, aggregateID, tenantID, atOrBefore)
	if err != nil {
		if errors.Is(err, store.ErrNoSnapshot) {
			return es.Snapshot{}, store.ErrNoSnapshot
		}
		return es.Snapshot{}, &es.StoreError{
			Op:          "loadSnapshot",
			AggregateID: aggregateID,
			TenantID:    tenantID,
			Attempt:     1,
			Err:         err,
		}
	}

	if s.config.Logger != nil {
		s.config.Logger.Debug(ctx, "snapshot loaded",
			"aggregate_id", aggregateID,
			"tenant_id", tenantID,
			"version", snap.Version,
			"at_or_before", atOrBefore)
	}
	return snap, nil
}
