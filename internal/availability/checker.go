// Package availability computes how many seats remain at a reservation slot.
//
// Capacity is a single restaurant-wide ceiling applied to each (date, time)
// pair on its own.  Slots are point-in-time buckets: a party at 19:00 and a
// party at 19:15 never count against each other even though their dinners
// overlap.  The checker only reads; callers that go on to write a
// reservation must re-check inside their write transaction.
package availability

import (
	"context"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/schedule"
)

// DefaultMaxCapacity is the number of guests the dining room seats per slot.
const DefaultMaxCapacity = 50

// Store returns the active (non-cancelled) bookings of a dining day.
type Store interface {
	FindReservationsByDate(ctx context.Context, date time.Time) ([]model.SlotBooking, error)
}

// Remaining returns capacity - occupied, floored at zero.
func Remaining(capacity, occupied int) int {
	if occupied >= capacity {
		return 0
	}
	return capacity - occupied
}

// Fits reports whether partySize more guests fit next to occupied seats.
func Fits(capacity, occupied, partySize int) bool {
	return occupied+partySize <= capacity
}

// NormalizeTime returns the canonical "HH:MM" key of a slot time so that
// "19:00" and "19:00:00" land in the same bucket.
func NormalizeTime(t string) string {
	c, err := schedule.ParseTime(t)
	if err != nil {
		return t
	}
	return c.String()
}

// Checker answers availability questions against a Store.
type Checker struct {
	store Store
	max   int
}

// NewChecker returns a Checker enforcing maxCapacity seats per slot.  A
// non-positive maxCapacity falls back to DefaultMaxCapacity.
func NewChecker(store Store, maxCapacity int) *Checker {
	if store == nil {
		panic("nil store passed to NewChecker")
	}
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxCapacity
	}
	return &Checker{store: store, max: maxCapacity}
}

// MaxCapacity returns the per-slot ceiling.
func (c *Checker) MaxCapacity() int { return c.max }

// Snapshot loads the day once and returns per-slot totals.
func (c *Checker) Snapshot(ctx context.Context, date time.Time) (Occupancy, error) {
	bookings, err := c.store.FindReservationsByDate(ctx, date)
	if err != nil {
		return Occupancy{}, err
	}
	seats := make(map[string]int, len(bookings))
	for _, b := range bookings {
		seats[NormalizeTime(b.Time)] += b.PartySize
	}
	return Occupancy{max: c.max, seats: seats}, nil
}

// OccupiedSeats sums the party sizes booked at exactly slot on date.
func (c *Checker) OccupiedSeats(ctx context.Context, date time.Time, slot string) (int, error) {
	occ, err := c.Snapshot(ctx, date)
	if err != nil {
		return 0, err
	}
	return occ.Occupied(slot), nil
}

// RemainingCapacity returns the seats still free at slot on date.
func (c *Checker) RemainingCapacity(ctx context.Context, date time.Time, slot string) (int, error) {
	occ, err := c.Snapshot(ctx, date)
	if err != nil {
		return 0, err
	}
	return occ.Remaining(slot), nil
}

// IsSlotAvailable reports whether partySize guests fit at slot on date.
func (c *Checker) IsSlotAvailable(ctx context.Context, date time.Time, slot string, partySize int) (bool, error) {
	occ, err := c.Snapshot(ctx, date)
	if err != nil {
		return false, err
	}
	return occ.Fits(slot, partySize), nil
}

// Occupancy is a point-in-time view of one dining day.
type Occupancy struct {
	max   int
	seats map[string]int
}

// Occupied returns the seats taken at slot.
func (o Occupancy) Occupied(slot string) int { return o.seats[NormalizeTime(slot)] }

// Remaining returns the seats left at slot.
func (o Occupancy) Remaining(slot string) int { return Remaining(o.max, o.Occupied(slot)) }

// Fits reports whether partySize guests fit at slot.
func (o Occupancy) Fits(slot string, partySize int) bool {
	return Fits(o.max, o.Occupied(slot), partySize)
}
