// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios. For example, ErrCapacityExceeded signals that a capacity
// re-check performed inside a write transaction found the slot full,
// while ErrConflict reports that the database aborted the transaction
// because of a concurrent writer (deadlock or lock wait timeout).
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write could not be applied because a
// concurrent transaction held or contended for the same rows.  The
// operation may be retried.
var ErrConflict = errors.New("conflict")

// ErrCapacityExceeded is returned by capacity-guarded writes when the
// seats already booked at the slot plus the new party would exceed the
// ceiling.  The check runs while the slot lock is held, so the result is
// authoritative for that transaction.
var ErrCapacityExceeded = errors.New("slot capacity exceeded")
