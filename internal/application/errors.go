package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/erp-automation/internal/persistence"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested document does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a document with the same identity already exists.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrTransient marks best-effort integration failures such as notification dispatch.
	ErrTransient = errors.New("application: transient integration failure")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface. Field names are listed in sorted order.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// BatchRowError reports one row of a batch job that could not be updated.
type BatchRowError struct {
	Job   string
	RowID string
	Err   error
}

// Error implements the error interface.
func (e *BatchRowError) Error() string {
	return fmt.Sprintf("%s: row %s: %v", e.Job, e.RowID, e.Err)
}

// Unwrap exposes the underlying failure.
func (e *BatchRowError) Unwrap() error {
	return e.Err
}

// mapRepoError translates persistence sentinels into application sentinels.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	default:
		return err
	}
}
