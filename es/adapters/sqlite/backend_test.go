package sqlite

import (
	"errors"
	"testing"
	"time"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unique constraint failed", errors.New("constraint failed: UNIQUE constraint failed: events.aggregate_id, events.tenant_id, events.version (2067)"), true},
		{"lowercase variant", errors.New("unique constraint violated"), true},
		{"unrelated error", errors.New("database is locked"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseDateTimeRoundTrip(t *testing.T) {
	original := time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)

	formatted := original.Format(sqliteDateTimeFormat)
	parsed, err := parseDateTime(formatted)
	if err != nil {
		t.Fatalf("parseDateTime(%q) error: %v", formatted, err)
	}
	if !parsed.Equal(original) {
		t.Errorf("parseDateTime round trip = %v, want %v", parsed, original)
	}
}

func TestParseDateTimeRejectsGarbage(t *testing.T) {
	if _, err := parseDateTime("not a time"); err == nil {
		t.Error("parseDateTime() accepted garbage input")
	}
}

func TestNewBackendConfigOptions(t *testing.T) {
	config := NewBackendConfig(
		WithEventsTable("order_events"),
		WithSnapshotsTable("order_snapshots"),
	)

	if config.EventsTable != "order_events" {
		t.Errorf("EventsTable = %q, want order_events", config.EventsTable)
	}
	if config.SnapshotsTable != "order_snapshots" {
		t.Errorf("SnapshotsTable = %q, want order_snapshots", config.SnapshotsTable)
	}
}

func TestNewBackendConfigDefaults(t *testing.T) {
	config := NewBackendConfig()
	if config.EventsTable != "events" || config.SnapshotsTable != "snapshots" {
		t.Errorf("tables = %q/%q, want events/snapshots", config.EventsTable, config.SnapshotsTable)
	}
}
