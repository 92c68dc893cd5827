// Package store provides the tenant-scoped event store: validated atomic
// appends with optimistic-concurrency retry, full history loads, and lazy
// version-ranged streams. Database specifics live in the adapter packages;
// this package owns validation, retry and degradation behavior.
package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/tidemark/eventfold/es"
	"github.com/tidemark/eventfold/es/deadletter"
)

var (
	// ErrVersionConflict indicates a unique constraint violation on
	// (aggregate_id, tenant_id, version): another writer committed first.
	// Adapters return it (possibly wrapped) from InsertBatch.
	ErrVersionConflict = errors.New("version conflict")

	// ErrNoSnapshot indicates no snapshot exists for the aggregate at or
	// before the requested version.
	ErrNoSnapshot = errors.New("no snapshot")
)

// EventBackend is the event persistence half of an adapter.
// Implementations must commit each InsertBatch call atomically: all events
// of the batch become visible together or not at all.
type EventBackend interface {
	// InsertBatch persists the batch in a single transaction. It returns
	// ErrVersionConflict (possibly wrapped) if any event's
	// (aggregate_id, tenant_id, version) already exists.
	InsertBatch(ctx context.Context, events []es.StoredEvent) error

	// SelectStream returns the full event history for the aggregate,
	// scoped to the tenant, ordered ascending by version.
	SelectStream(ctx context.Context, aggregateID, tenantID string) ([]es.StoredEvent, error)

	// SelectPage returns up to limit events with version >= fromVersion,
	// scoped to the tenant, ordered ascending by version. Used for keyset
	// pagination; each page is a complete, self-contained query.
	SelectPage(ctx context.Context, aggregateID, tenantID string, fromVersion int64, limit int) ([]es.StoredEvent, error)
}

// SnapshotBackend is the snapshot persistence half of an adapter.
type SnapshotBackend interface {
	// InsertSnapshot persists a checkpoint. Re-saving the same
	// (aggregate_id, tenant_id, version) replaces the stored payload.
	InsertSnapshot(ctx context.Context, snap es.Snapshot) error

	// SelectSnapshot returns the most recent snapshot whose version is
	// <= atOrBefore, or the most recent overall when atOrBefore is 0.
	// Returns ErrNoSnapshot when none exists.
	SelectSnapshot(ctx context.Context, aggregateID, tenantID string, atOrBefore int64) (es.Snapshot, error)
}

// Backend is the full adapter surface: an ACID-capable persistence substrate
// that enforces a unique constraint over (aggregate_id, tenant_id, version)
// and supports ordered range scans by version.
type Backend interface {
	EventBackend
	SnapshotBackend
}

// Config contains configuration for a Store.
// Configuration is immutable after construction.
type Config struct {
	// Logger is an optional logger for observability.
	// If nil, logging is disabled (zero overhead).
	Logger es.Logger

	// Attempts is the total number of times an append is tried when it
	// collides with a concurrently committed version.
	Attempts int

	// RetryDelay is the fixed delay between append attempts.
	RetryDelay time.Duration

	// RetryBackoff multiplies the delay after each failed attempt.
	// 1.0 keeps the delay fixed.
	RetryBackoff float64

	// RetryJitter adds up to this much random extra delay per attempt,
	// spreading out retries of contending writers. Zero disables jitter.
	RetryJitter time.Duration

	// PageSize is the number of events fetched per page by LoadSince.
	PageSize int

	// DeadLetter, if set, durably captures batches whose persistence
	// failed for reasons other than a version conflict, so that store
	// unavailability never silently loses events. Captured batches are
	// replayed via DrainDeadLetter.
	DeadLetter *deadletter.Queue
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Logger:       nil, // No logging by default
		Attempts:     3,
		RetryDelay:   100 * time.Millisecond,
		RetryBackoff: 1.0,
		RetryJitter:  0,
		PageSize:     100,
	}
}

// Option is a functional option for configuring a Store.
type Option func(*Config)

// WithLogger sets a logger for the store.
func WithLogger(logger es.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithRetry sets the total attempt count and fixed inter-attempt delay used
// when an append collides with a concurrently committed version.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Config) {
		c.Attempts = attempts
		c.RetryDelay = delay
	}
}

// WithBackoff enables multiplicative backoff with random jitter between
// append attempts. Useful for high-contention aggregates.
func WithBackoff(multiplier float64, jitter time.Duration) Option {
	return func(c *Config) {
		c.RetryBackoff = multiplier
		c.RetryJitter = jitter
	}
}

// WithPageSize sets the number of events fetched per page by LoadSince.
func WithPageSize(n int) Option {
	return func(c *Config) {
		c.PageSize = n
	}
}

// WithDeadLetter sets a durable dead-letter queue for batches that could not
// be persisted due to store unavailability.
func WithDeadLetter(q *deadletter.Queue) Option {
	return func(c *Config) {
		c.DeadLetter = q
	}
}

// NewConfig creates a store configuration with functional options.
// It starts with the default configuration and applies the given options.
//
// Example:
//
//	config := store.NewConfig(
//	    store.WithLogger(myLogger),
//	    store.WithRetry(5, 50*time.Millisecond),
//	)
func NewConfig(opts ...Option) Config {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// Store is the event store front-end. It validates batches, delegates
// persistence to a Backend, retries version conflicts, and scopes every
// read to a single tenant.
type Store struct {
	backend Backend
	config  Config
}

// New creates a Store over the given backend.
func New(backend Backend, config Config) *Store {
	if config.Attempts < 1 {
		config.Attempts = 1
	}
	if config.PageSize < 1 {
		config.PageSize = DefaultConfig().PageSize
	}
	if config.RetryBackoff < 1.0 {
		config.RetryBackoff = 1.0
	}
	return &Store{
		backend: backend,
		config:  config,
	}
}

// Append atomically persists a batch of events for one aggregate stream and
// returns the batch as persisted (zero event IDs and timestamps filled in)
// for downstream use such as publishing.
//
// The batch must share a single aggregate and tenant and carry contiguous
// ascending versions; violations return *es.ValidationError before any
// persistence attempt. Version collisions with concurrent writers are
// retried up to the configured attempt count with the configured delay,
// then surfaced as *es.VersionConflictError. A context cancellation during
// the retry wait surfaces a *es.StoreError wrapping both the context error
// and ErrVersionConflict, without dead-lettering the batch. An empty batch
// is a no-op and returns an empty slice.
func (s *Store) Append(ctx context.Context, events []es.StoredEvent) ([]es.StoredEvent, error) {
	if len(events) == 0 {
		return []es.StoredEvent{}, nil
	}

	if err := es.ValidateBatch(events); err != nil {
		if s.config.Logger != nil {
			s.config.Logger.Error(ctx, "append rejected", "error", err)
		}
		return nil, err
	}

	// Work on a copy so the caller's slice is never mutated.
	batch := make([]es.StoredEvent, len(events))
	copy(batch, events)

	now := time.Now().UTC()
	for i := range batch {
		if batch[i].EventID == uuid.Nil {
			batch[i].EventID = uuid.New()
		}
		if batch[i].OccurredAt.IsZero() {
			batch[i].OccurredAt = now
		}
	}

	first := batch[0]
	if s.config.Logger != nil {
		s.config.Logger.Debug(ctx, "append starting",
			"aggregate_id", first.AggregateID,
			"tenant_id", first.TenantID,
			"event_count", len(batch),
			"from_version", first.Version)
	}

	delay := s.config.RetryDelay
	for attempt := 1; ; attempt++ {
		err := s.backend.InsertBatch(ctx, batch)
		if err == nil {
			if s.config.Logger != nil {
				s.config.Logger.Debug(ctx, "append committed",
					"aggregate_id", first.AggregateID,
					"tenant_id", first.TenantID,
					"event_count", len(batch),
					"attempt", attempt)
			}
			return batch, nil
		}

		if !errors.Is(err, ErrVersionConflict) {
			return nil, s.persistFailed(ctx, batch, attempt, err)
		}

		if attempt >= s.config.Attempts {
			if s.config.Logger != nil {
				s.config.Logger.Error(ctx, "append conflict, retries exhausted",
					"aggregate_id", first.AggregateID,
					"tenant_id", first.TenantID,
					"version", first.Version,
					"attempts", attempt)
			}
			return nil, &es.VersionConflictError{
				AggregateID: first.AggregateID,
				TenantID:    first.TenantID,
				Version:     first.Version,
				Attempts:    attempt,
			}
		}

		if s.config.Logger != nil {
			s.config.Logger.Debug(ctx, "append conflict, retrying",
				"aggregate_id", first.AggregateID,
				"tenant_id", first.TenantID,
				"version", first.Version,
				"attempt", attempt,
				"delay", delay)
		}

		// A cancelled retry wait is still a conflict, not an outage;
		// the batch is never dead-lettered on this path.
		if sleepErr := sleep(ctx, delay+s.jitter()); sleepErr != nil {
			if s.config.Logger != nil {
				s.config.Logger.Error(ctx, "append conflict, retry wait cancelled",
					"aggregate_id", first.AggregateID,
					"tenant_id", first.TenantID,
					"version", first.Version,
					"attempt", attempt,
					"error", sleepErr)
			}
			return nil, &es.StoreError{
				Op:          "append",
				AggregateID: first.AggregateID,
				TenantID:    first.TenantID,
				Attempt:     attempt,
				Err:         fmt.Errorf("retry wait cancelled after version conflict: %w (%w)", sleepErr, err),
			}
		}
		delay = time.Duration(float64(delay) * s.config.RetryBackoff)
	}
}

// persistFailed wraps a non-conflict failure, dead-lettering the batch first
// when a queue is configured so that events are never silently lost.
func (s *Store) persistFailed(ctx context.Context, batch []es.StoredEvent, attempt int, err error) error {
	first := batch[0]
	storeErr := &es.StoreError{
		Op:          "append",
		AggregateID: first.AggregateID,
		TenantID:    first.TenantID,
		Attempt:     attempt,
		Err:         err,
	}

	if s.config.DeadLetter != nil {
		if dlqErr := s.config.DeadLetter.Enqueue(batch); dlqErr != nil {
			if s.config.Logger != nil {
				s.config.Logger.Error(ctx, "append failed and dead-letter enqueue failed",
					"aggregate_id", first.AggregateID,
					"tenant_id", first.TenantID,
					"error", err,
					"dead_letter_error", dlqErr)
			}
			return storeErr
		}
		storeErr.Deferred = true
	}

	if s.config.Logger != nil {
		s.config.Logger.Error(ctx, "append failed",
			"aggregate_id", first.AggregateID,
			"tenant_id", first.TenantID,
			"attempt", attempt,
			"deferred", storeErr.Deferred,
			"error", err)
	}

	return storeErr
}

// Load returns the full event history for the aggregate, strictly scoped to
// the given tenant, ordered ascending by version. An unknown aggregate
// returns an empty slice.
func (s *Store) Load(ctx context.Context, aggregateID, tenantID string) ([]es.StoredEvent, error) {
	events, err := s.backend.SelectStream(ctx, aggregateID, tenantID)
	if err != nil {
		return nil, &es.StoreError{
			Op:          "load",
			AggregateID: aggregateID,
			TenantID:    tenantID,
			Attempt:     1,
			Err:         err,
		}
	}

	if s.config.Logger != nil {
		s.config.Logger.Debug(ctx, "stream loaded",
			"aggregate_id", aggregateID,
			"tenant_id", tenantID,
			"event_count", len(events))
	}

	return events, nil
}

// LoadSince returns a lazy stream over the subset of the aggregate's history
// with version >= fromVersion, in ascending version order. Pages are fetched
// on demand so arbitrarily long histories never materialize in memory at
// once. The stream is finite and restartable per call, not resumable
// mid-iteration; abandoning it early is safe.
func (s *Store) LoadSince(aggregateID, tenantID string, fromVersion int64) *Stream {
	if fromVersion < 1 {
		fromVersion = 1
	}
	return &Stream{
		backend:     s.backend,
		logger:      s.config.Logger,
		aggregateID: aggregateID,
		tenantID:    tenantID,
		next:        fromVersion,
		pageSize:    s.config.PageSize,
	}
}

// DrainDeadLetter replays dead-lettered batches into the backend. Batches
// that commit (or collide with an already-committed version, meaning a
// previous replay got through) are removed from the queue; the first other
// failure stops the drain, leaving the remainder queued.
func (s *Store) DrainDeadLetter(ctx context.Context) error {
	if s.config.DeadLetter == nil {
		return nil
	}
	return s.config.DeadLetter.Drain(ctx, func(ctx context.Context, batch []es.StoredEvent) error {
		err := s.backend.InsertBatch(ctx, batch)
		if err != nil && errors.Is(err, ErrVersionConflict) {
			// Already committed by an earlier attempt; drop the batch.
			if s.config.Logger != nil {
				s.config.Logger.Info(ctx, "dead-lettered batch already committed, dropping",
					"aggregate_id", batch[0].AggregateID,
					"tenant_id", batch[0].TenantID)
			}
			return nil
		}
		return err
	})
}

// DeadLetterBatch durably captures a batch for later replay. It is invoked
// by Append on non-conflict persistence failures; it is exported so callers
// with their own failure handling can reuse the same queue.
func (s *Store) DeadLetterBatch(ctx context.Context, batch []es.StoredEvent) error {
	if s.config.DeadLetter == nil {
		return errors.New("no dead-letter queue configured")
	}
	return s.config.DeadLetter.Enqueue(batch)
}

func (s *Store) jitter() time.Duration {
	if s.config.RetryJitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(s.config.RetryJitter)))
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
