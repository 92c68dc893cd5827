// Package pgxstore provides a PostgreSQL store backend built on the pgx
// driver and its connection pool. It is functionally equivalent to the
// lib/pq adapter; prefer it for applications already on pgx or wanting
// pooled batch inserts.
package pgxstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tidemark/eventfold/es"
	"github.com/tidemark/eventfold/es/store"
)

// BackendConfig contains configuration for the pgx backend.
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

// Backend is a pgx-backed implementation of store.Backend.
type Backend struct {
	pool   *pgxpool.Pool
	config BackendConfig
}

// NewBackend creates a pgx backend over an existing connection pool.
func NewBackend(pool *pgxpool.Pool, config BackendConfig) *Backend {
	return &Backend{
		pool:   pool,
		config: config,
	}
}

// Connect creates a connection pool for dbURL and fails fast if the
// database is unreachable.
func Connect(ctx context.Context, dbURL string, config BackendConfig) (*Backend, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewBackend(pool, config), nil
}

// Close shuts down the connection pool.
func (b *Backend) Close() {
	b.pool.Close()
}

// InsertBatch implements store.EventBackend. The batch is queued as a single
// pgx batch inside one transaction, so all events commit together or not at
// all; unique constraint violations map to store.ErrVersionConflict.
func (b *Backend) InsertBatch(ctx context.Context, events []es.StoredEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		INSERT INTO %s (
			event_id, aggregate_id, tenant_id, version,
			payload, metadata, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.config.EventsTable)

	batch := &pgx.Batch{}
	for i := range events {
		event := &events[i]
		metadata, err := encodeMetadata(event.Metadata)
		if err != nil {
			return err
		}
		batch.Queue(query,
			event.EventID.String(),
			event.AggregateID,
			event.TenantID,
			event.Version,
			event.Payload,
			metadata,
			event.OccurredAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range events {
		if _, err := results.Exec(); err != nil {
			results.Close()
			if IsUniqueViolation(err) {
				return fmt.Errorf("version %d for aggregate %s: %w",
					events[i].Version, events[i].AggregateID, store.ErrVersionConflict)
			}
			return fmt.Errorf("failed to insert event %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch results: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
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

	rows, err := b.pool.Query(ctx, query, aggregateID, tenantID)
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

	rows, err := b.pool.Query(ctx, query, aggregateID, tenantID, fromVersion, limit)
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

	_, err := b.pool.Exec(ctx, query,
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
	err := b.pool.QueryRow(ctx, query, aggregateID, tenantID, atOrBefore).Scan(
		&snap.AggregateID,
		&snap.TenantID,
		&snap.Version,
		&snap.Payload,
		&snap.OccurredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
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
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// encodeMetadata serializes the metadata map for the JSONB column.
// A nil or empty map is stored as NULL.
func encodeMetadata(metadata map[string]string) (interface{}, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event metadata: %w", err)
	}
	return encoded, nil
}

// scanEvents maps queried rows back to StoredEvents.
func scanEvents(rows pgx.Rows) ([]es.StoredEvent, error) {
	var events []es.StoredEvent
	for rows.Next() {
		var (
			event    es.StoredEvent
			eventID  string
			metadata []byte
		)
		err := rows.Scan(
			&eventID,
			&event.AggregateID,
			&event.TenantID,
			&event.Version,
			&event.Payload,
			&metadata,
			&event.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.EventID, err = uuid.Parse(eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event ID %q: %w", eventID, err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode event metadata: %w", err)
			}
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

var _ store.Backend = (*Backend)(nil)
