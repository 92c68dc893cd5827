// Package memory provides an in-memory store backend. It enforces the same
// (aggregate_id, tenant_id, version) uniqueness and tenant scoping as the
// SQL adapters, making it suitable for unit tests and examples. It should
// not be used in production applications.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tidemark/eventfold/es"
	"github.com/tidemark/eventfold/es/store"
)

// Backend is a mutex-guarded in-memory implementation of store.Backend.
type Backend struct {
	mu        sync.RWMutex
	events    map[streamKey][]es.StoredEvent // ascending by version
	snapshots map[streamKey][]es.Snapshot    // ascending by version
}

// streamKey scopes a stream to its tenant. Identical aggregate IDs under
// different tenants are distinct streams.
type streamKey struct {
	tenantID    string
	aggregateID string
}

// NewBackend creates an empty in-memory backend.
func NewBackend() *Backend {
	return &Backend{
		events:    map[streamKey][]es.StoredEvent{},
		snapshots: map[streamKey][]es.Snapshot{},
	}
}

// InsertBatch implements store.EventBackend. The whole batch is checked for
// version collisions before anything is written, so a conflicting batch
// leaves no partial state behind.
func (b *Backend) InsertBatch(ctx context.Context, events []es.StoredEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := streamKey{tenantID: events[0].TenantID, aggregateID: events[0].AggregateID}
	existing := b.events[key]

	for _, e := range events {
		if hasVersion(existing, e.Version) {
			return fmt.Errorf("version %d already committed for aggregate %s: %w",
				e.Version, e.AggregateID, store.ErrVersionConflict)
		}
	}

	appended := append(existing, cloneEvents(events)...)
	sort.SliceStable(appended, func(i, j int) bool {
		return appended[i].Version < appended[j].Version
	})
	b.events[key] = appended
	return nil
}

// SelectStream implements store.EventBackend.
func (b *Backend) SelectStream(ctx context.Context, aggregateID, tenantID string) ([]es.StoredEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return cloneEvents(b.events[streamKey{tenantID: tenantID, aggregateID: aggregateID}]), nil
}

// SelectPage implements store.EventBackend.
func (b *Backend) SelectPage(ctx context.Context, aggregateID, tenantID string, fromVersion int64, limit int) ([]es.StoredEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	stream := b.events[streamKey{tenantID: tenantID, aggregateID: aggregateID}]
	page := make([]es.StoredEvent, 0, limit)
	for _, e := range stream {
		if e.Version < fromVersion {
			continue
		}
		page = append(page, e)
		if len(page) == limit {
			break
		}
	}
	return cloneEvents(page), nil
}

// InsertSnapshot implements store.SnapshotBackend. Saving an existing
// version replaces its payload.
func (b *Backend) InsertSnapshot(ctx context.Context, snap es.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := streamKey{tenantID: snap.TenantID, aggregateID: snap.AggregateID}
	snaps := b.snapshots[key]
	for i := range snaps {
		if snaps[i].Version == snap.Version {
			snaps[i] = snap
			return nil
		}
	}
	snaps = append(snaps, snap)
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].Version < snaps[j].Version
	})
	b.snapshots[key] = snaps
	return nil
}

// SelectSnapshot implements store.SnapshotBackend.
func (b *Backend) SelectSnapshot(ctx context.Context, aggregateID, tenantID string, atOrBefore int64) (es.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return es.Snapshot{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	snaps := b.snapshots[streamKey{tenantID: tenantID, aggregateID: aggregateID}]
	for i := len(snaps) - 1; i >= 0; i-- {
		if atOrBefore > 0 && snaps[i].Version > atOrBefore {
			continue
		}
		return snaps[i], nil
	}
	return es.Snapshot{}, store.ErrNoSnapshot
}

func hasVersion(stream []es.StoredEvent, version int64) bool {
	for _, e := range stream {
		if e.Version == version {
			return true
		}
	}
	return false
}

func cloneEvents(events []es.StoredEvent) []es.StoredEvent {
	out := make([]es.StoredEvent, len(events))
	copy(out, events)
	return out
}

var _ store.Backend = (*Backend)(nil)
