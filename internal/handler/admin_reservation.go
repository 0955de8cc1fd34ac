package handler

import (
    "log/slog"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/restaurant-reservation/internal/booking"
    "github.com/iliyamo/restaurant-reservation/internal/model"
)

// reservationResp is the JSON shape of a reservation.
type reservationResp struct {
    ID        uint64    `json:"id"`
    Date      string    `json:"date"`
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

func newReservationResp(r *model.Reservation) reservationResp {
    return reservationResp{
        ID:        r.ID,
        Date:      r.DateString(),
        Time:      r.Time,
        PartySize: r.PartySize,
        Name:      r.Name,
        Email:     r.Email,
        Phone:     r.Phone,
        Notes:     r.Notes,
        Status:    r.Status,
        CreatedAt: r.CreatedAt,
        UpdatedAt: r.UpdatedAt,
    }
}

// AdminReservationHandler serves the back-office reservation endpoints.
// All methods assume JWT authentication and the ADMIN role have been
// checked by middleware.
type AdminReservationHandler struct {
    Svc *booking.Service
    Now Clock
    Log *slog.Logger
}

// NewAdminReservationHandler constructs an AdminReservationHandler.
func NewAdminReservationHandler(svc *booking.Service, now Clock, log *slog.Logger) *AdminReservationHandler {
    if svc == nil {
        panic("nil service passed to NewAdminReservationHandler")
    }
    return &AdminReservationHandler{Svc: svc, Now: now, Log: log}
}

// List handles GET /v1/admin/reservations?date=YYYY-MM-DD and returns every
// reservation of the day, cancelled ones included, in service order.
func (h *AdminReservationHandler) List(c echo.Context) error {
    list, err := h.Svc.List(c.Request().Context(), c.QueryParam("date"))
    if err != nil {
        return writeError(c, h.Log, err)
    }
    out := make([]reservationResp, 0, len(list))
    seats := 0
    for i := range list {
        out = append(out, newReservationResp(&list[i]))
        if list[i].Active() {
            seats += list[i].PartySize
        }
    }
    return c.JSON(http.StatusOK, echo.Map{
        "date":         c.QueryParam("date"),
        "reservations": out,
        "total_guests": seats,
    })
}

// Get handles GET /v1/admin/reservations/:id.
func (h *AdminReservationHandler) Get(c echo.Context) error {
    id, ok := parseID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }
    res, err := h.Svc.Get(c.Request().Context(), id)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, newReservationResp(res))
}

// Update handles PUT /v1/admin/reservations/:id with a full reservation
// payload, optionally carrying a new status.  Moving the booking or growing
// the party is refused with 409 when the target slot is full.
func (h *AdminReservationHandler) Update(c echo.Context) error {
    id, ok := parseID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }
    var req booking.Request
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    res, err := h.Svc.Update(c.Request().Context(), id, req, h.Now.now())
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, newReservationResp(res))
}

// Cancel handles POST /v1/admin/reservations/:id/cancel.
func (h *AdminReservationHandler) Cancel(c echo.Context) error {
    id, ok := parseID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }
    res, err := h.Svc.Cancel(c.Request().Context(), id, h.Now.now())
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, newReservationResp(res))
}

// Delete handles DELETE /v1/admin/reservations/:id.
func (h *AdminReservationHandler) Delete(c echo.Context) error {
    id, ok := parseID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }
    if err := h.Svc.Delete(c.Request().Context(), id, h.Now.now()); err != nil {
        return writeError(c, h.Log, err)
    }
    return c.NoContent(http.StatusNoContent)
}
