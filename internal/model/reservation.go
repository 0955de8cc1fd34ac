package model

import "time"

// Reservation statuses.  Only CANCELLED reservations release their seats.
const (
    StatusPending   = "PENDING"
    StatusConfirmed = "CONFIRMED"
    StatusCancelled = "CANCELLED"
)

// Reservation is a table booking for one dining day.
//
// Fields:
//  ID        – primary key identifier.
//  Date      – dining day; only year, month and day are meaningful.
//  Time      – slot start as a wall-clock "HH:MM".  On late evenings a
//              time such as "01:00" belongs to the night that started on
//              Date, not to the following day.
//  PartySize – number of guests, always positive.
//  Name, Email, Phone – contact details of the guest.
//  Notes     – free-form request (allergies, high chair...).
//  Status    – PENDING, CONFIRMED or CANCELLED.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Reservation struct {
    ID        uint64    `json:"id"`
    Date      time.Time `json:"-"`
    Time      string    `json:"time"`
    PartySize int       `json:"number_of_people"`
    Name      string    `json:"name"`
    Email     string    `json:"email"`
    Phone     string    `json:"phone"`
    Notes     string    `json:"notes,omitempty"`
    Status    string    `json:"status"`
    CreatedAt time.Time `json:"created_at"`
    UpdatedAt time.Time `json:"updated_at"`
}

// DateString returns Date formatted as YYYY-MM-DD.
func (r Reservation) DateString() string { return r.Date.Format("2006-01-02") }

// Active reports whether the reservation still occupies seats.
func (r Reservation) Active() bool { return r.Status != StatusCancelled }

// SlotBooking is the projection of a reservation the availability checker
// works on: the slot it occupies and how many seats.
type SlotBooking struct {
    Time      string
    PartySize int
}
