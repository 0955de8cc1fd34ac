package handler

import (
    "errors"
    "log/slog"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/restaurant-reservation/internal/booking"
    "github.com/iliyamo/restaurant-reservation/internal/schedule"
)

// Clock returns the current instant.  Handlers read it once per request and
// pass the value down so every decision of a request sees the same "now".
type Clock func() time.Time

func (f Clock) now() time.Time {
    if f == nil {
        return time.Now()
    }
    return f()
}

// parseID parses the ":id" path parameter as a positive integer.
func parseID(c echo.Context) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    return id, err == nil && id > 0
}

// writeError maps service errors to JSON responses.  Unexpected errors are
// logged and reported as 500 without details.
func writeError(c echo.Context, log *slog.Logger, err error) error {
    var (
        invalidDate *schedule.InvalidDateError
        validation  *booking.ValidationError
        unavailable *booking.SlotUnavailableError
        conflict    *booking.ConcurrencyConflictError
    )
    switch {
    case errors.As(err, &invalidDate):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": invalidDate.Error(), "field": "date"})
    case errors.As(err, &validation):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": validation.Error(), "field": validation.Field})
    case errors.As(err, &unavailable):
        return c.JSON(http.StatusConflict, echo.Map{
            "error":              unavailable.Error(),
            "code":               "slot_unavailable",
            "remaining_capacity": unavailable.Remaining,
        })
    case errors.As(err, &conflict):
        return c.JSON(http.StatusConflict, echo.Map{
            "error":     conflict.Error(),
            "code":      "concurrency_conflict",
            "retryable": true,
        })
    case errors.Is(err, booking.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
    }
    if log == nil {
        log = slog.Default()
    }
    log.ErrorContext(c.Request().Context(), "request failed",
        "method", c.Request().Method, "path", c.Path(), "err", err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
