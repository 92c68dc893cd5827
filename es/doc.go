// Package es provides core event sourcing infrastructure with tenant-scoped
// isolation.
//
// # Overview
//
// This package defines the fundamental types for event-sourced aggregate
// persistence:
//   - StoredEvent: immutable domain events, versioned per aggregate stream
//   - Snapshot: materialized aggregate checkpoints that bound replay cost
//   - ValidationError, VersionConflictError, StoreError: the error taxonomy
//   - Logger: optional structured diagnostics
//
// # Design Philosophy
//
// Clean Architecture: core types are database-agnostic. Infrastructure
// concerns are isolated in adapter packages under es/adapters.
//
// Tenant isolation: every stream is keyed by (aggregate ID, tenant ID).
// Tenant scoping is enforced on every query the store issues, not left as an
// application-level convention. Aggregate IDs may collide across tenants
// without ever sharing events.
//
// Immutability: events are append-only. They are never updated or deleted,
// supporting permanent retention, replay and audit.
//
// # Quick Start
//
// 1. Generate database migrations:
//
//	go run github.com/tidemark/eventfold/cmd/migrate-gen -adapter sqlite -output migrations
//
// 2. Apply migrations to your database
//
// 3. Create an event store:
//
//	import (
//	    "github.com/tidemark/eventfold/es/adapters/sqlite"
//	    "github.com/tidemark/eventfold/es/store"
//	)
//
//	backend := sqlite.NewBackend(db, sqlite.DefaultBackendConfig())
//	st := store.New(backend, store.DefaultConfig())
//
// 4. Append events:
//
//	events := []es.StoredEvent{
//	    {
//	        AggregateID: orderID,
//	        TenantID:    tenantID,
//	        Version:     1,
//	        Payload:     payload,
//	        Metadata:    map[string]string{"source": "checkout"},
//	    },
//	}
//
//	appended, err := st.Append(ctx, events)
//
// 5. Reconstitute aggregate state:
//
//	import "github.com/tidemark/eventfold/es/aggregate"
//
//	result, err := aggregate.Reconstitute(ctx, st, snaps, orderID, tenantID,
//	    applyOrderEvent, Order{}, aggregate.Options[Order]{})
//
// # Optimistic Concurrency
//
// The caller assigns versions; the store validates that each batch is
// contiguous and ascending, then relies on the database unique constraint on
// (aggregate_id, tenant_id, version) for conflict detection. No locks are
// held: concurrent writers race to commit, losers get a version conflict.
// Appends are retried internally with a fixed delay; exhaustion surfaces
// *VersionConflictError so the caller can reload and reapply.
//
// # Database Schema
//
// Events are stored in a table keyed by event_id with a unique index on
// (aggregate_id, tenant_id, version) and BLOB payloads so users choose their
// own encoding. Snapshots live in a separate table keyed by
// (aggregate_id, tenant_id, version). See the migrations package.
package es
