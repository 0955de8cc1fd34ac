package booking

import (
	"fmt"

	"github.com/iliyamo/restaurant-reservation/internal/repository"
)

// ErrNotFound is returned when a reservation ID does not exist.
var ErrNotFound = repository.ErrNotFound

// ValidationError reports a malformed or out-of-policy request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// SlotUnavailableError is returned when the party does not fit in the
// requested slot.  The guest should pick another slot.
type SlotUnavailableError struct {
	Date      string
	Time      string
	PartySize int
	Remaining int
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("slot %s %s cannot seat %d guests (%d seats left)",
		e.Date, e.Time, e.PartySize, e.Remaining)
}

// ConcurrencyConflictError is returned when concurrent writers kept winning
// the slot lock and the write could not be applied after the allowed
// attempts.  The request may be retried as is.
type ConcurrencyConflictError struct {
	Date     string
	Time     string
	Attempts int
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("slot %s %s is being booked concurrently; gave up after %d attempts",
		e.Date, e.Time, e.Attempts)
}

func (e *ConcurrencyConflictError) Unwrap() error { return repository.ErrConflict }
