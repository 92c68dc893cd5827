// Package sqlite provides a SQLite store backend for event sourcing,
// using the cgo-free modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tidemark/eventfold/es"
	"github.com/tidemark/eventfold/es/store"
)

const (
	// sqliteDateTimeFormat is the format used for timestamp storage/parsing in SQLite
	sqliteDateTimeFormat = "2006-01-02 15:04:05.999999"
)

// BackendConfig contains configuration for the SQLite backend.
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

// BackendOption is a functional option for configuring a Backend.
type BackendOption func(*BackendConfig)

// WithLogger sets a logger for the backend.
func WithLogger(logger es.Logger) BackendOption {
	return func(c *BackendConfig) {
		c.Logger = logger
	}
}

// WithEventsTable sets a custom events table name.
func WithEventsTable(tableName string) BackendOption {
	return func(c *BackendConfig) {
		c.EventsTable = tableName
	}
}

// WithSnapshotsTable sets a custom snapshots table name.
func WithSnapshotsTable(tableName string) BackendOption {
	return func(c *BackendConfig) {
		c.SnapshotsTable = tableName
	}
}

// NewBackendConfig creates a backend configuration with functional options.
// It starts with the default configuration and applies the given options.
//
// Example:
//
//	config := sqlite.NewBackendConfig(
//	    sqlite.WithLogger(myLogger),
//	    sqlite.WithEventsTable("custom_events"),
//	)
func NewBackendConfig(opts ...BackendOption) BackendConfig {
	config := DefaultBackendConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// Backend is a SQLite-backed implementation of store.Backend.
// It owns transaction boundaries: each InsertBatch commits atomically.
type Backend struct {
	db     *sql.DB
	config BackendConfig
}

// NewBackend creates a new SQLite backend over the given database handle.
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
		) VALUES (?, ?, ?, ?, ?, ?, ?)
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
			event.OccurredAt.UTC().Format(sqliteDateTimeFormat),
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
		WHERE aggregate_id = ? AND tenant_id = ?
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
		WHERE aggregate_id = ? AND tenant_id = ? AND version >= ?
		ORDER BY version ASC
		LIMIT ?
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
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (aggregate_id, tenant_id, version)
		DO UPDATE SET payload = excluded.payload, occurred_at = excluded.occurred_at
	`, b.config.SnapshotsTable)

	_, err := b.db.ExecContext(ctx, query,
		snap.AggregateID,
		snap.TenantID,
		snap.Version,
		snap.Payload,
		snap.OccurredAt.UTC().Format(sqliteDateTimeFormat),
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
		WHERE aggregate_id = ? AND tenant_id = ? AND (? = 0 OR version <= ?)
		ORDER BY version DESC
		LIMIT 1
	`, b.config.SnapshotsTable)

	var (
		snap       es.Snapshot
		occurredAt string
	)
	err := b.db.QueryRowContext(ctx, query, aggregateID, tenantID, atOrBefore, atOrBefore).Scan(
		&snap.AggregateID,
		&snap.TenantID,
		&snap.Version,
		&snap.Payload,
		&occurredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return es.Snapshot{}, store.ErrNoSnapshot
	}
	if err != nil {
		return es.Snapshot{}, fmt.Errorf("failed to query snapshot: %w", err)
	}

	snap.OccurredAt, err = parseDateTime(occurredAt)
	if err != nil {
		return es.Snapshot{}, err
	}
	return snap, nil
}

// IsUniqueViolation checks if an error is a SQLite unique constraint
// violation. This is exported for testing purposes.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	// SQLite error messages for unique constraint violations
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "constraint failed")
}

var _ store.Backend = (*Backend)(nil)
