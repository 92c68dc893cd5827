package mysql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"duplicate entry code", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true},
		{"other mysql error", &mysql.MySQLError{Number: 1452}, false},
		{"wrapped mysql error", fmt.Errorf("insert failed: %w", &mysql.MySQLError{Number: 1062}), true},
		{"message fallback", errors.New("Duplicate entry '1-agg' for key 'uniq_events_stream_version'"), true},
		{"unrelated error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestEncodeMetadata(t *testing.T) {
	value, err := encodeMetadata(nil)
	if err != nil {
		t.Fatalf("encodeMetadata(nil) error: %v", err)
	}
	if value != nil {
		t.Errorf("encodeMetadata(nil) = %v, want NULL", value)
	}

	value, err = encodeMetadata(map[string]string{"trace_id": "abc"})
	if err != nil {
		t.Fatalf("encodeMetadata() error: %v", err)
	}
	encoded, ok := value.([]byte)
	if !ok {
		t.Fatalf("encodeMetadata() returned %T, want []byte", value)
	}
	if string(encoded) != `{"trace_id":"abc"}` {
		t.Errorf("encodeMetadata() = %s, want JSON object", encoded)
	}
}

func TestBackendConfigDefaults(t *testing.T) {
	config := DefaultBackendConfig()
	if config.EventsTable != "events" || config.SnapshotsTable != "snapshots" {
		t.Errorf("tables = %q/%q, want events/snapshots", config.EventsTable, config.SnapshotsTable)
	}
}
