package application

import (
	"errors"
	"fmt"
	"testing"

	"github.com/example/erp-automation/internal/persistence"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"time_to": "invalid", "end_date": "invalid"}}
	if got := withFields.Error(); got != "validation failed: end_date, time_to" {
		t.Fatalf("expected sorted field list, got %q", got)
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 || !base.HasErrors() {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestMapRepoError(t *testing.T) {
	t.Parallel()

	if !errors.Is(mapRepoError(fmt.Errorf("load: %w", persistence.ErrNotFound)), ErrNotFound) {
		t.Fatal("expected persistence not found to map to ErrNotFound")
	}
	if !errors.Is(mapRepoError(persistence.ErrDuplicate), ErrAlreadyExists) {
		t.Fatal("expected duplicate to map to ErrAlreadyExists")
	}
	other := errors.New("disk full")
	if mapRepoError(other) != other {
		t.Fatal("expected unrelated errors to pass through")
	}
	if mapRepoError(nil) != nil {
		t.Fatal("expected nil to stay nil")
	}
}

func TestBatchRowError_Unwraps(t *testing.T) {
	t.Parallel()

	cause := errors.New("locked")
	err := error(&BatchRowError{Job: "rollover-daily", RowID: "t1", Err: cause})
	if !errors.Is(err, cause) {
		t.Fatal("expected BatchRowError to unwrap to its cause")
	}
	if got := err.Error(); got != "rollover-daily: row t1: locked" {
		t.Fatalf("unexpected message %q", got)
	}
}
