package pgxstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unique violation code", &pgconn.PgError{Code: "23505"}, true},
		{"other pg error", &pgconn.PgError{Code: "40001"}, false},
		{"wrapped pg error", fmt.Errorf("batch exec: %w", &pgconn.PgError{Code: "23505"}), true},
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

	value, err = encodeMetadata(map[string]string{"source": "worker"})
	if err != nil {
		t.Fatalf("encodeMetadata() error: %v", err)
	}
	encoded, ok := value.([]byte)
	if !ok {
		t.Fatalf("encodeMetadata() returned %T, want []byte", value)
	}
	if string(encoded) != `{"source":"worker"}` {
		t.Errorf("encodeMetadata() = %s, want JSON object", encoded)
	}
}

func TestBackendConfigDefaults(t *testing.T) {
	config := DefaultBackendConfig()
	if config.EventsTable != "events" || config.SnapshotsTable != "snapshots" {
		t.Errorf("tables = %q/%q, want events/snapshots", config.EventsTable, config.SnapshotsTable)
	}
}
