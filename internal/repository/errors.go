// Package repository defines error types that are reused across the
// reservation and settings stores.  These values allow the service layer to
// distinguish between different failure scenarios without inspecting
// driver-specific error codes.
package repository

import (
    "errors"
    "fmt"
)

// ErrNotFound is returned when a lookup or a targeted delete/update finds
// no matching row.
var ErrNotFound = errors.New("not found")

// ErrConflict matches every UniqueViolation via errors.Is, for callers that
// only care that a write was rejected by a unique index.
var ErrConflict = errors.New("conflict")

// UniqueIndex names one of the two uniqueness dimensions of a reservation.
type UniqueIndex string

const (
    IndexIdentity  UniqueIndex = "uq_identity"  // (room_no, name)
    IndexPlacement UniqueIndex = "uq_placement" // (dormitory, floor, seat)
)

// UniqueViolation is returned by Insert and UpdatePlacement when the store
// rejected the write because of a unique index.  Index reports which one.
type UniqueViolation struct {
    Index UniqueIndex
    Err   error
}

func (e *UniqueViolation) Error() string {
    return fmt.Sprintf("unique constraint %s violated", e.Index)
}

func (e *UniqueViolation) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrConflict) true for any violation.
func (e *UniqueViolation) Is(target error) bool { return target == ErrConflict }
