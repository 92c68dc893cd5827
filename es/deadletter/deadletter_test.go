package deadletter_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tidemark/eventfold/es"
	"github.com/tidemark/eventfold/es/deadletter"
)

func makeBatch(aggregateID string, versions ...int64) []es.StoredEvent {
	events := make([]es.StoredEvent, len(versions))
	for i, v := range versions {
		events[i] = es.StoredEvent{
			EventID:     uuid.New(),
			AggregateID: aggregateID,
			TenantID:    "tenant-1",
			Version:     v,
			Payload:     []byte(fmt.Sprintf(`{"v":%d}`, v)),
			Metadata:    map[string]string{"source": "test"},
			OccurredAt:  time.Now().UTC().Truncate(time.Microsecond),
		}
	}
	return events
}

func TestEnqueueDrainRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.jsonl")
	queue, err := deadletter.Open(path, 10)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer queue.Close()

	first := makeBatch("agg-1", 1, 2)
	second := makeBatch("agg-2", 1)
	if err := queue.Enqueue(first); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if err := queue.Enqueue(second); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if queue.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", queue.Len())
	}

	var drained [][]es.StoredEvent
	err = queue.Drain(context.Background(), func(ctx context.Context, batch []es.StoredEvent) error {
		drained = append(drained, batch)
		return nil
	})
	if err != nil {
		t.Fatalf("Drain() error: %v", err)
	}
	if len(drained) != 2 {
		t.Fatalf("drained %d batches, want 2", len(drained))
	}
	if queue.Len() != 0 {
		t.Errorf("Len() after drain = %d, want 0", queue.Len())
	}

	// Batches replay in journal order with their payloads intact.
	got := drained[0]
	if len(got) != 2 || got[0].AggregateID != "agg-1" {
		t.Fatalf("first drained batch = %+v, want agg-1 batch of 2", got)
	}
	for i, want := range first {
		if got[i].EventID != want.EventID {
			t.Errorf("event[%d] ID = %s, want %s", i, got[i].EventID, want.EventID)
		}
		if got[i].Version != want.Version {
			t.Errorf("event[%d] version = %d, want %d", i, got[i].Version, want.Version)
		}
		if string(got[i].Payload) != string(want.Payload) {
			t.Errorf("event[%d] payload = %s, want %s", i, got[i].Payload, want.Payload)
		}
		if got[i].Metadata["source"] != "test" {
			t.Errorf("event[%d] metadata lost: %v", i, got[i].Metadata)
		}
		if !got[i].OccurredAt.Equal(want.OccurredAt) {
			t.Errorf("event[%d] occurred_at = %v, want %v", i, got[i].OccurredAt, want.OccurredAt)
		}
	}
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.jsonl")
	queue, err := deadletter.Open(path, 2)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer queue.Close()

	if err := queue.Enqueue(makeBatch("agg-1", 1)); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if err := queue.Enqueue(makeBatch("agg-2", 1)); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	err = queue.Enqueue(makeBatch("agg-3", 1))
	if !errors.Is(err, deadletter.ErrFull) {
		t.Fatalf("Enqueue() at capacity error = %v, want ErrFull", err)
	}
	if queue.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (rejected batch not counted)", queue.Len())
	}
}

func TestEnqueueEmptyBatchIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.jsonl")
	queue, err := deadletter.Open(path, 1)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer queue.Close()

	if err := queue.Enqueue(nil); err != nil {
		t.Fatalf("Enqueue(nil) error: %v", err)
	}
	if queue.Len() != 0 {
		t.Errorf("Len() = %d, want 0", queue.Len())
	}
}

func TestDrainStopsAtFirstError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.jsonl")
	queue, err := deadletter.Open(path, 10)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer queue.Close()

	for i := 1; i <= 3; i++ {
		if err := queue.Enqueue(makeBatch(fmt.Sprintf("agg-%d", i), 1)); err != nil {
			t.Fatalf("Enqueue() error: %v", err)
		}
	}

	replayErr := errors.New("store still down")
	calls := 0
	err = queue.Drain(context.Background(), func(ctx context.Context, batch []es.StoredEvent) error {
		calls++
		if calls == 2 {
			return replayErr
		}
		return nil
	})
	if !errors.Is(err, replayErr) {
		t.Fatalf("Drain() error = %v, want the replay error", err)
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2 (stops at first failure)", calls)
	}
	if queue.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (failed batch and successor stay queued)", queue.Len())
	}

	// The failed batch is still first in line on the next drain.
	var next string
	err = queue.Drain(context.Background(), func(ctx context.Context, batch []es.StoredEvent) error {
		if next == "" {
			next = batch[0].AggregateID
		}
		return nil
	})
	if err != nil {
		t.Fatalf("second Drain() error: %v", err)
	}
	if next != "agg-2" {
		t.Errorf("next batch after partial drain = %s, want agg-2", next)
	}
}

func TestQueueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.jsonl")

	queue, err := deadletter.Open(path, 5)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := queue.Enqueue(makeBatch("agg-1", 1, 2)); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if err := queue.Enqueue(makeBatch("agg-2", 1)); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if err := queue.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	reopened, err := deadletter.Open(path, 5)
	if err != nil {
		t.Fatalf("re-Open() error: %v", err)
	}
	defer reopened.Close()

	if reopened.Len() != 2 {
		t.Fatalf("Len() after reopen = %d, want 2", reopened.Len())
	}

	var aggs []string
	err = reopened.Drain(context.Background(), func(ctx context.Context, batch []es.StoredEvent) error {
		aggs = append(aggs, batch[0].AggregateID)
		return nil
	})
	if err != nil {
		t.Fatalf("Drain() error: %v", err)
	}
	if len(aggs) != 2 || aggs[0] != "agg-1" || aggs[1] != "agg-2" {
		t.Errorf("drained order = %v, want [agg-1 agg-2]", aggs)
	}
}

func TestOpenRejectsBadCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.jsonl")
	if _, err := deadletter.Open(path, 0); err == nil {
		t.Error("Open() with capacity 0 succeeded, want error")
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.jsonl")
	queue, err := deadletter.Open(path, 5)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := queue.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := queue.Enqueue(makeBatch("agg-1", 1)); err == nil {
		t.Error("Enqueue() after Close succeeded, want error")
	}
}

func TestDrainCanceledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.jsonl")
	queue, err := deadletter.Open(path, 5)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer queue.Close()

	if err := queue.Enqueue(makeBatch("agg-1", 1)); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = queue.Drain(ctx, func(ctx context.Context, batch []es.StoredEvent) error {
		t.Error("fn called despite canceled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Drain() error = %v, want context.Canceled", err)
	}
	if queue.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (nothing drained)", queue.Len())
	}
}
