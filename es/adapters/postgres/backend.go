// Package postgres provides a PostgreSQL store backend for event sourcing.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/tidemark/eventfold/es"
	"github.com/tidemark/eventfold/es/store"
)

// BackendConfig contains configuration for the Postgres backend.
// Configuration is immutable after construction.
type BackendConfig struct {
	// Logger is an optional logger for observability.
	// If nil, logging is disabled (zero overhead).
	Logger es.Logger

	// EventsTable is the name of the events table
	EventsTable string

	// SnapshotsTable is the name of the snapshots table
	SnapshotsTable string
}

// DefaultBackendConfig returns the default configuration.
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		EventsTable:    "events",
		SnapshotsTable: "snapshots",
		Logger:         nil, // No logging by default
	}
}

// Backend is a PostgreSQL-backed implementation of store.Backend.
// It owns transaction boundaries: each InsertBatch commits atomically.
type Backend struct {
	db     *sql.DB
	config BackendConfig
}

// NewBackend creates a new Postgres backend over the given database handle.
func NewBackend(db *sql.DB, config BackendConfig) *Backend {
	return &Backend{
		db:     db,
		config: config,
	}
}

// InsertBatch implements store.EventBackend. All events of the batch are
// inserted in a single transaction; the unique constraint on
// (aggregate_id, tenant_id, version) turns concurrent-writer collisions into
// store.ErrVersionConflict with nothing partially written.
func (b *Backend) InsertBatch(ctx context.Context, events []es.StoredEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (
			event_id, aggregate_id, tenant_id, version,
			payload, metadata, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.config.EventsTable)

	for i := range events {
		event := &events[i]
		metadata, err := encodeMetadata(event.Metadata)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, query,
			event.EventID.String(),
			event.AggregateID,
			event.TenantID,
			event.Version,
			event.Payload,
			metadata,
			event.OccurredAt,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("version %d for aggregate %s: %w",
					event.Version, event.AggregateID, store.ErrVersionConflict)
			}
			return fmt.Errorf("failed to insert event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("commit of batch for aggregate %s: %w",
				events[0].AggregateID, store.ErrVersionConflict)
		}
		return fmt.Errorf("failed to commit event batch: %w", err)
	}

	if b.config.Logger != nil {
		b.config.Logger.Debug(ctx, "batch inserted",
			"aggregate_id", events[0].AggregateID,
			"tenant_id", events[0].TenantID,
			"event_count", len(events))
	}
	return nil
}

// SelectStream implements store.EventBackend.
func (b *Backend) SelectStream(ctx context.Context, aggregateID, tenantID string) ([]es.StoredEvent, error) {
	query := fmt.Sprintf(`
		SELECT event_id, aggregate_id, tenant_id, version, payload, metadata, occurred_at
		FROM %s
		WHERE aggregate_id = $1 AND tenant_id = $2
		ORDER BY version ASC
	`, b.config.EventsTable)

	rows, err := b.db.QueryContext(ctx, query, aggregateID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// SelectPage implements store.EventBackend using keyset pagination on the
// version column.
func (b *Backend) SelectPage(ctx context.Context, aggregateID, tenantID string, fromVersion int64, limit int) ([]es.StoredEvent, error) {
	query := fmt.Sprintf(`
		SELECT event_id, aggregate_id, tenant_id, version, payload, metadata, occurred_at
		FROM %s
		WHERE aggregate_id = $1 AND tenant_id = $2 AND version >= $3
		ORDER BY version ASC
		LIMIT $4
	`, b.config.EventsTable)

	rows, err := b.db.QueryContext(ctx, query, aggregateID, tenantID, fromVersion, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query event page: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// InsertSnapshot implements store.SnapshotBackend.
func (b *Backend) InsertSnapshot(ctx context.Context, snap es.Snapshot) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (aggregate_id, tenant_id, version, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (aggregate_id, tenant_id, version)
		DO UPDATE SET payload = EXCLUDED.payload, occurred_at = EXCLUDED.occurred_at
	`, b.config.SnapshotsTable)

	_, err := b.db.ExecContext(ctx, query,
		snap.AggregateID,
		snap.TenantID,
		snap.Version,
		snap.Payload,
		snap.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// SelectSnapshot implements store.SnapshotBackend.
func (b *Backend) SelectSnapshot(ctx context.Context, aggregateID, tenantID string, atOrBefore int64) (es.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT aggregate_id, tenant_id, version, payload, occurred_at
		FROM %s
		WHERE aggregate_id = $1 AND tenant_id = $2 AND ($3 = 0 OR version <= $3)
		ORDER BY version DESC
		LIMIT 1
	`, b.config.SnapshotsTable)

	var snap es.Snapshot
	err := b.db.QueryRowContext(ctx, query, aggregateID, tenantID, atOrBefore).Scan(
		&snap.AggregateID,
		&snap.TenantID,
		&snap.Version,
		&snap.Payload,
		&snap.OccurredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return es.Snapshot{}, store.ErrNoSnapshot
	}
	if err != nil {
		return es.Snapshot{}, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return snap, nil
}

// IsUniqueViolation checks if an error is a PostgreSQL unique constraint
// violation. This is exported for testing purposes.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	// Check if it's a pq.Error with unique_violation code (23505)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}

	// Fallback: check error message for common patterns
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

var _ store.Backend = (*Backend)(nil)
