package es_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tidemark/eventfold/es"
)

func TestValidationErrorMessage(t *testing.T) {
	err := &es.ValidationError{
		AggregateID: "agg-1",
		TenantID:    "tenant-1",
		Index:       1,
		Version:     3,
		Reason:      "versions must be contiguous and ascending",
	}

	msg := err.Error()
	for _, want := range []string{"agg-1", "tenant-1", "index=1", "version=3", "contiguous"} {
		if !strings.Contains(msg, want) {
			t.Errorf("ValidationError message %q missing %q", msg, want)
		}
	}
}

func TestVersionConflictErrorMessage(t *testing.T) {
	err := &es.VersionConflictError{
		AggregateID: "agg-1",
		TenantID:    "tenant-1",
		Version:     3,
		Attempts:    5,
	}

	msg := err.Error()
	for _, want := range []string{"version 3", "agg-1", "tenant-1", "5 attempts"} {
		if !strings.Contains(msg, want) {
			t.Errorf("VersionConflictError message %q missing %q", msg, want)
		}
	}
}

func TestStoreErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &es.StoreError{
		Op:          "append",
		AggregateID: "agg-1",
		TenantID:    "tenant-1",
		Attempt:     2,
		Err:         cause,
	}

	if !errors.Is(err, cause) {
		t.Error("StoreError should unwrap to its cause")
	}

	wrapped := fmt.Errorf("command handler: %w", err)
	var storeErr *es.StoreError
	if !errors.As(wrapped, &storeErr) {
		t.Fatal("errors.As should find *StoreError through wrapping")
	}
	if storeErr.Attempt != 2 {
		t.Errorf("StoreError.Attempt = %d, want 2", storeErr.Attempt)
	}
}

func TestStoreErrorDeferredMessage(t *testing.T) {
	err := &es.StoreError{
		Op:          "append",
		AggregateID: "agg-1",
		TenantID:    "tenant-1",
		Attempt:     1,
		Deferred:    true,
		Err:         errors.New("db down"),
	}

	if !strings.Contains(err.Error(), "dead-lettered") {
		t.Errorf("deferred StoreError message %q should mention dead-lettering", err.Error())
	}
}
