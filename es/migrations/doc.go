// Package migrations provides SQL migration generation for the event
// sourcing schema: an append-only events table with a unique index on
// (aggregate_id, tenant_id, version), and a snapshots table keyed by the
// same triple. Generators exist for PostgreSQL, MySQL and SQLite.
//
// The schema is defined here explicitly rather than derived from entity
// annotations; the adapter packages contain the matching pure row mapping
// functions.
package migrations
