package es_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tidemark/eventfold/es"
)

func makeBatch(aggregateID, tenantID string, versions ...int64) []es.StoredEvent {
	events := make([]es.StoredEvent, len(versions))
	for i, v := range versions {
		events[i] = es.StoredEvent{
			EventID:     uuid.New(),
			AggregateID: aggregateID,
			TenantID:    tenantID,
			Version:     v,
			Payload:     []byte(`{"n":1}`),
			OccurredAt:  time.Now(),
		}
	}
	return events
}

func TestValidateBatch(t *testing.T) {
	tests := []struct {
		name       string
		events     []es.StoredEvent
		wantErr    bool
		wantReason string
	}{
		{
			name:   "nil batch is valid",
			events: nil,
		},
		{
			name:   "single event starting at 1",
			events: makeBatch("agg-1", "tenant-1", 1),
		},
		{
			name:   "contiguous ascending versions",
			events: makeBatch("agg-1", "tenant-1", 4, 5, 6),
		},
		{
			name:       "gap in versions",
			events:     makeBatch("agg-1", "tenant-1", 1, 3),
			wantErr:    true,
			wantReason: "versions must be contiguous and ascending",
		},
		{
			name:       "descending versions",
			events:     makeBatch("agg-1", "tenant-1", 2, 1),
			wantErr:    true,
			wantReason: "versions must be contiguous and ascending",
		},
		{
			name:       "duplicate versions",
			events:     makeBatch("agg-1", "tenant-1", 1, 1),
			wantErr:    true,
			wantReason: "versions must be contiguous and ascending",
		},
		{
			name:       "version zero",
			events:     makeBatch("agg-1", "tenant-1", 0),
			wantErr:    true,
			wantReason: "version must be >= 1",
		},
		{
			name:       "negative version",
			events:     makeBatch("agg-1", "tenant-1", -4, -3),
			wantErr:    true,
			wantReason: "version must be >= 1",
		},
		{
			name: "mixed aggregate IDs",
			events: append(
				makeBatch("agg-1", "tenant-1", 1),
				makeBatch("agg-2", "tenant-1", 2)...,
			),
			wantErr:    true,
			wantReason: "aggregate ID mismatch within batch",
		},
		{
			name: "mixed tenant IDs",
			events: append(
				makeBatch("agg-1", "tenant-1", 1),
				makeBatch("agg-1", "tenant-2", 2)...,
			),
			wantErr:    true,
			wantReason: "tenant ID mismatch within batch",
		},
		{
			name:       "empty aggregate ID",
			events:     makeBatch("", "tenant-1", 1),
			wantErr:    true,
			wantReason: "aggregate ID is empty",
		},
		{
			name:       "empty tenant ID",
			events:     makeBatch("agg-1", "", 1),
			wantErr:    true,
			wantReason: "tenant ID is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := es.ValidateBatch(tt.events)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("ValidateBatch() unexpected error: %v", err)
				}
				return
			}

			var vErr *es.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("ValidateBatch() error = %v, want *ValidationError", err)
			}
			if vErr.Reason != tt.wantReason {
				t.Errorf("ValidateBatch() reason = %q, want %q", vErr.Reason, tt.wantReason)
			}
		})
	}
}

func TestValidateBatchReportsOffendingIndex(t *testing.T) {
	events := makeBatch("agg-1", "tenant-1", 1, 2, 4)

	err := es.ValidateBatch(events)
	var vErr *es.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("ValidateBatch() error = %v, want *ValidationError", err)
	}
	if vErr.Index != 2 {
		t.Errorf("ValidationError.Index = %d, want 2", vErr.Index)
	}
	if vErr.Version != 4 {
		t.Errorf("ValidationError.Version = %d, want 4", vErr.Version)
	}
	if vErr.AggregateID != "agg-1" || vErr.TenantID != "tenant-1" {
		t.Errorf("ValidationError ids = (%s, %s), want (agg-1, tenant-1)", vErr.AggregateID, vErr.TenantID)
	}
}

func TestValidateBatchDoesNotRequireStartingAtOne(t *testing.T) {
	// A batch appended mid-stream starts past 1; contiguity with the
	// committed history is the storage constraint's job.
	if err := es.ValidateBatch(makeBatch("agg-1", "tenant-1", 7, 8)); err != nil {
		t.Fatalf("ValidateBatch() unexpected error: %v", err)
	}
}
