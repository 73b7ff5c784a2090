package service

import (
	"fmt"

	"github.com/loandesk/loanengine/cmd/loanengine/models"
)

// The error taxonomy surfaced to callers. Every failure of a core
// operation is one of these kinds; none are retried internally.

// ValidationError rejects a request before any state is touched
// (bad date range, missing fields, policy denial).
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("validation failed: %s", e.Msg)
}

// NotFoundError reports an unknown asset/loan/reservation id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError reports an overlap with an existing booking. The
// blocking record is included so callers can render a useful error.
// Races lost to a concurrent writer surface the same way as
// pre-existing overlaps.
type ConflictError struct {
	Blocking BookingWindow
}

func (e *ConflictError) Error() string {
	if e.Blocking.OpenEnded {
		return fmt.Sprintf("window conflicts with %s %s (%s, from %s, not yet returned)",
			e.Blocking.Kind, e.Blocking.RecordID, e.Blocking.Holder, e.Blocking.Start)
	}
	return fmt.Sprintf("window conflicts with %s %s (%s, %s to %s)",
		e.Blocking.Kind, e.Blocking.RecordID, e.Blocking.Holder, e.Blocking.Start, e.Blocking.End)
}

// StateError reports an operation illegal in the asset's or record's
// current state (booking a remastering asset, returning a returned
// loan, an illegal status transition).
type StateError struct {
	Msg string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("illegal state: %s", e.Msg)
}

// StorageError wraps an I/O failure during an atomic write. The
// operation observed no partial state: the transaction rolled back.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure: %v", e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func invalidRange(start, end models.Date) *ValidationError {
	return &ValidationError{
		Field: "start_date",
		Msg:   fmt.Sprintf("start %s is after end %s", start, end),
	}
}

func required(field string) *ValidationError {
	return &ValidationError{Field: field, Msg: "is required"}
}
