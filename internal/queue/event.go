// Package queue defines message payloads exchanged over the message broker.
package queue

import (
    "time"

    "github.com/iliyamo/restaurant-reservation/internal/model"
)

// Queue names.  The routing key of each event is its queue name.
const (
    ReservationCreatedQueue   = "reservation.created"
    ReservationCancelledQueue = "reservation.cancelled"
)

// ReservationEvent is published when a reservation is created, re-timed or
// cancelled.  It contains enough information for downstream consumers to
// log or notify the guest without querying the primary database.
type ReservationEvent struct {
    Type          string `json:"type"`
    ReservationID uint64 `json:"reservation_id"`
    Date          string `json:"date"`
    Time          string `json:"time"`
    PartySize     int    `json:"number_of_people"`
    Name          string `json:"name"`
    Email         string `json:"email"`
    Status        string `json:"status"`
    OccurredAt    string `json:"occurred_at"`
}

// NewReservationEvent builds the event of type typ (a queue name) for res.
func NewReservationEvent(typ string, res *model.Reservation, at time.Time) ReservationEvent {
    return ReservationEvent{
        Type:          typ,
        ReservationID: res.ID,
        Date:          res.DateString(),
        Time:          res.Time,
        PartySize:     res.PartySize,
        Name:          res.Name,
        Email:         res.Email,
        Status:        res.Status,
        OccurredAt:    at.UTC().Format(time.RFC3339),
    }
}
