package timetable

import (
	"errors"
	"fmt"
)

// InvalidInputKind labels request validation failures.
type InvalidInputKind string

const (
	InputMissingProgram     InvalidInputKind = "missing_program"
	InputEmptyProgramList   InvalidInputKind = "empty_program_list"
	InputEmptySlotGrid      InvalidInputKind = "empty_slot_grid"
	InputEmptyDateRange     InvalidInputKind = "empty_date_range"
	InputDateRangeTooLarge  InvalidInputKind = "date_range_too_large"
	InputInvalidMaxSessions InvalidInputKind = "invalid_max_sessions"
)

// InvalidInputError is returned when a request is rejected before any generation work.
type InvalidInputError struct {
	Kind   InvalidInputKind
	Detail string
}

func (e *InvalidInputError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("invalid input: %s", e.Kind)
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Kind, e.Detail)
}

// SnapshotError is returned when the entity graph cannot back a generation.
type SnapshotError struct {
	Detail string
	Err    error
}

func (e *SnapshotError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("snapshot: %s: %v", e.Detail, e.Err)
	}
	return "snapshot: " + e.Detail
}

func (e *SnapshotError) Unwrap() error { return e.Err }

// CancelledError accompanies a partial report when the caller cancelled generation.
type CancelledError struct {
	SlotsConsidered int
	Err             error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("generation cancelled after %d slots: %v", e.SlotsConsidered, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// InternalInvariantError aborts a generation whose output broke a hard constraint.
type InternalInvariantError struct {
	Invariant string
	Detail    string
}

func (e *InternalInvariantError) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", e.Invariant, e.Detail)
}

// IsInvalidInput reports whether err carries an InvalidInputError.
func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}

func invalidInput(kind InvalidInputKind, format string, args ...any) *InvalidInputError {
	return &InvalidInputError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
