package handler

import (
    "log/slog"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/restaurant-reservation/internal/booking"
)

// ReservationHandler serves the guest-facing endpoints: opening hours,
// slot availability and booking.  None of them require authentication.
type ReservationHandler struct {
    Svc *booking.Service
    Now Clock
    Log *slog.Logger
}

// NewReservationHandler constructs a ReservationHandler.  svc must be non-nil.
func NewReservationHandler(svc *booking.Service, now Clock, log *slog.Logger) *ReservationHandler {
    if svc == nil {
        panic("nil service passed to NewReservationHandler")
    }
    return &ReservationHandler{Svc: svc, Now: now, Log: log}
}

// OpeningHours handles GET /v1/opening-hours?date=YYYY-MM-DD.
func (h *ReservationHandler) OpeningHours(c echo.Context) error {
    out, err := h.Svc.OpeningHours(c.QueryParam("date"))
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, out)
}

// AvailableSlots handles GET /v1/reservations/available-slots?date=YYYY-MM-DD.
// It lists every slot of the day with the seats it has left.  On the current
// day slots inside the booking lead time are omitted.
func (h *ReservationHandler) AvailableSlots(c echo.Context) error {
    out, err := h.Svc.AvailableSlots(c.Request().Context(), c.QueryParam("date"), h.Now.now())
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, out)
}

type checkAvailabilityReq struct {
    Date      string `json:"date"`
    Time      string `json:"time"`
    PartySize int    `json:"number_of_people"`
}

// CheckAvailability handles POST /v1/reservations/check-availability.  The
// body is {"date", "time", "number_of_people"}; the response says whether
// the party fits and how many seats the slot has left.
func (h *ReservationHandler) CheckAvailability(c echo.Context) error {
    var req checkAvailabilityReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    out, err := h.Svc.CheckAvailability(c.Request().Context(), req.Date, req.Time, req.PartySize, h.Now.now())
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, out)
}

// Create handles POST /v1/reservations.  A booking is accepted only if the
// slot still has room when the reservation is written; 409 responses carry
// a code telling the guest to pick another slot (slot_unavailable) or to
// simply retry (concurrency_conflict).
func (h *ReservationHandler) Create(c echo.Context) error {
    var req booking.Request
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    req.Status = ""
    res, err := h.Svc.Create(c.Request().Context(), req, h.Now.now())
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, newReservationResp(res))
}
