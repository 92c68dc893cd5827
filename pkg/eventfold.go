// Package eventfold provides tenant-scoped event sourcing for Go
// applications.
//
// This package serves as the main entry point for the eventfold library.
// For the core functionality, see the es package and its subpackages:
//
//	es            - Core types: StoredEvent, Snapshot, errors, Logger
//	es/store      - Event store: validated appends, retry, lazy streams
//	es/snapshot   - Snapshot service and snapshot policies
//	es/aggregate  - Deterministic aggregate reconstitution
//	es/deadletter - Bounded durable dead-letter queue
//	es/adapters/* - PostgreSQL (lib/pq and pgx), MySQL, SQLite, memory
//	es/migrations - Migration generation
//
// Quick Start:
//
//  1. Generate migrations:
//     go run github.com/tidemark/eventfold/cmd/migrate-gen -adapter sqlite -output migrations
//
//  2. Create a store and append events:
//     backend := sqlite.NewBackend(db, sqlite.DefaultBackendConfig())
//     st := store.New(backend, store.DefaultConfig())
//     appended, err := st.Append(ctx, events)
//
//  3. Reconstitute aggregate state:
//     result, err := aggregate.Reconstitute(ctx, st, snaps, id, tenant,
//         fold, initial, aggregate.Options[State]{})
//
// See the examples directory for complete working examples.
package eventfold

// Version returns the current version of the library.
func Version() string {
	return "0.1.0-dev"
}
