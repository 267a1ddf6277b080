package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/test-portal/backend/internal/tabular"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrNotAvailable     = errors.New("test is not available")
	ErrAlreadySubmitted = errors.New("test already submitted")
	ErrNoQuestions      = errors.New("test has no questions")
)

// Error kinds reported to clients.
const (
	KindValidation          = "validation"
	KindAvailability        = "availability"
	KindDuplicateSubmission = "duplicate-submission"
	KindNotFound            = "not-found"
	KindSchemaMismatch      = "schema-mismatch"
	KindRowProcessing       = "row-processing-failure"
	KindInternal            = "internal"
)

// ValidationError carries field-level messages for bad input.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// MissingColumnsError is returned when an import file lacks required
// columns. Nothing has been written when it is returned.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing columns: " + strings.Join(e.Columns, ", ")
}

// ProcessingError wraps a failure to read an import file.
type ProcessingError struct {
	Err error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing error: %v", e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// RowError reports a failure on a data row after the schema check passed.
// Imported is the number of questions committed when the import stopped;
// Row is the 1-based line in the file, counting the header as line 1.
type RowError struct {
	Row      int
	Imported int
	Err      error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("processing error: row %d: %v (%d questions imported)", e.Row, e.Err, e.Imported)
}

func (e *RowError) Unwrap() error { return e.Err }

// DuplicationError reports a failed copy. Created tests stay committed.
type DuplicationError struct {
	Created int
	Err     error
}

func (e *DuplicationError) Error() string {
	return fmt.Sprintf("duplication failed after %d tests: %v", e.Created, e.Err)
}

func (e *DuplicationError) Unwrap() error { return e.Err }

// KindOf classifies err into one of the client-facing error kinds.
func KindOf(err error) string {
	var (
		validationErr *ValidationError
		missingErr    *MissingColumnsError
		rowErr        *RowError
		processingErr *ProcessingError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr), errors.Is(err, tabular.ErrUnsupportedFormat):
		return KindValidation
	case errors.Is(err, ErrNotAvailable), errors.Is(err, ErrNoQuestions):
		return KindAvailability
	case errors.Is(err, ErrAlreadySubmitted):
		return KindDuplicateSubmission
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.As(err, &missingErr):
		return KindSchemaMismatch
	case errors.As(err, &rowErr):
		return KindRowProcessing
	case errors.As(err, &processingErr):
		return KindValidation
	default:
		return KindInternal
	}
}
