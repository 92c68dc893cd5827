// Package deadletter provides a bounded, file-durable queue for event
// batches that could not be persisted to the primary store. It exists so
// store unavailability never silently loses events: failed batches are
// written to a local append-only journal and replayed later through an
// explicit drain.
//
// The queue is deliberately not an unbounded in-process list. Capacity is a
// hard limit; when the journal is full, Enqueue fails loudly and the caller
// keeps ownership of the batch.
package deadletter

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/tidemark/eventfold/es"
)

// ErrFull indicates the queue's capacity is exhausted; the batch was not
// captured and remains the caller's responsibility.
var ErrFull = errors.New("dead-letter queue is full")

// Queue is a bounded, durable dead-letter queue. Each entry is one event
// batch, journaled as a single JSON line and fsynced before Enqueue returns.
// Safe for concurrent use.
type Queue struct {
	mu       sync.Mutex
	path     string
	capacity int
	batches  int
	file     *os.File
}

// entry is the journaled form of one batch.
type entry struct {
	Events []journalEvent `json:"events"`
}

// journalEvent is the wire form of an event in the journal. The explicit
// mapping keeps the journal format decoupled from the in-memory type.
type journalEvent struct {
	EventID     string            `json:"event_id"`
	AggregateID string            `json:"aggregate_id"`
	TenantID    string            `json:"tenant_id"`
	Version     int64             `json:"version"`
	Payload     []byte            `json:"payload"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	OccurredAt  string            `json:"occurred_at"`
}

// Open opens (or creates) a queue journaled at path with the given batch
// capacity. Existing journal entries are counted toward capacity, so a
// process restart does not reset the bound.
func Open(path string, capacity int) (*Queue, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("capacity must be >= 1, got %d", capacity)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open dead-letter journal: %w", err)
	}

	batches, err := countLines(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to scan dead-letter journal: %w", err)
	}

	return &Queue{
		path:     path,
		capacity: capacity,
		batches:  batches,
		file:     file,
	}, nil
}

// Enqueue durably captures a batch. Returns ErrFull when the capacity limit
// is reached. The batch is fsynced before Enqueue returns.
func (q *Queue) Enqueue(events []es.StoredEvent) error {
	if len(events) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.file == nil {
		return errors.New("dead-letter queue is closed")
	}
	if q.batches >= q.capacity {
		return ErrFull
	}

	line, err := json.Marshal(toEntry(events))
	if err != nil {
		return fmt.Errorf("failed to encode dead-letter batch: %w", err)
	}
	line = append(line, '\n')

	if _, err := q.file.Write(line); err != nil {
		return fmt.Errorf("failed to journal dead-letter batch: %w", err)
	}
	if err := q.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync dead-letter journal: %w", err)
	}

	q.batches++
	return nil
}

// Len returns the number of batches currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.batches
}

// Drain replays queued batches in journal order through fn. Batches for
// which fn returns nil are removed. The first fn error stops the drain: the
// failed batch and everything after it stay queued, and the error is
// returned. Drain holds the queue lock for its duration, so concurrent
// Enqueue calls block until it finishes.
func (q *Queue) Drain(ctx context.Context, fn func(ctx context.Context, batch []es.StoredEvent) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.file == nil {
		return errors.New("dead-letter queue is closed")
	}

	entries, err := q.readAll()
	if err != nil {
		return err
	}

	drained := 0
	var drainErr error
	for _, batch := range entries {
		if err := ctx.Err(); err != nil {
			drainErr = err
			break
		}
		if err := fn(ctx, batch); err != nil {
			drainErr = err
			break
		}
		drained++
	}

	if drained > 0 {
		if err := q.rewrite(entries[drained:]); err != nil {
			return err
		}
	}
	return drainErr
}

// Close closes the journal file. The journal itself is kept on disk so
// queued batches survive restarts.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.file == nil {
		return nil
	}
	err := q.file.Close()
	q.file = nil
	return err
}

// readAll decodes every journaled batch. Caller holds the lock.
func (q *Queue) readAll() ([][]es.StoredEvent, error) {
	if _, err := q.file.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("failed to rewind dead-letter journal: %w", err)
	}

	var batches [][]es.StoredEvent
	scanner := bufio.NewScanner(q.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var ent entry
		if err := json.Unmarshal(scanner.Bytes(), &ent); err != nil {
			return nil, fmt.Errorf("corrupt dead-letter journal entry: %w", err)
		}
		batch, err := fromEntry(ent)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dead-letter journal: %w", err)
	}
	return batches, nil
}

// rewrite replaces the journal contents with the remaining batches.
// Caller holds the lock.
func (q *Queue) rewrite(remaining [][]es.StoredEvent) error {
	tmp := q.path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to rewrite dead-letter journal: %w", err)
	}

	for _, batch := range remaining {
		line, err := json.Marshal(toEntry(batch))
		if err != nil {
			file.Close()
			return fmt.Errorf("failed to encode dead-letter batch: %w", err)
		}
		if _, err := file.Write(append(line, '\n')); err != nil {
			file.Close()
			return fmt.Errorf("failed to rewrite dead-letter journal: %w", err)
		}
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync dead-letter journal: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close rewritten dead-letter journal: %w", err)
	}

	if err := os.Rename(tmp, q.path); err != nil {
		return fmt.Errorf("failed to swap dead-letter journal: %w", err)
	}

	reopened, err := os.OpenFile(q.path, os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to reopen dead-letter journal: %w", err)
	}
	q.file.Close()
	q.file = reopened
	q.batches = len(remaining)
	return nil
}

func toEntry(events []es.StoredEvent) entry {
	ent := entry{Events: make([]journalEvent, len(events))}
	for i, e := range events {
		ent.Events[i] = journalEvent{
			EventID:     e.EventID.String(),
			AggregateID: e.AggregateID,
			TenantID:    e.TenantID,
			Version:     e.Version,
			Payload:     e.Payload,
			Metadata:    e.Metadata,
			OccurredAt:  e.OccurredAt.Format(journalTimeFormat),
		}
	}
	return ent
}

func fromEntry(ent entry) ([]es.StoredEvent, error) {
	batch := make([]es.StoredEvent, len(ent.Events))
	for i, je := range ent.Events {
		event, err := je.toStoredEvent()
		if err != nil {
			return nil, err
		}
		batch[i] = event
	}
	return batch, nil
}
