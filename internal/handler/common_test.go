package handler

import (
    "errors"
    "io"
    "log/slog"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/restaurant-reservation/internal/booking"
    "github.com/iliyamo/restaurant-reservation/internal/schedule"
)

func TestWriteError(t *testing.T) {
    log := slog.New(slog.NewTextHandler(io.Discard, nil))
    tests := []struct {
        name string
        err  error
        code int
        body string
    }{
        {"invalidDate", &schedule.InvalidDateError{Input: "2024-13-01"}, http.StatusBadRequest, `"field":"date"`},
        {"validation", &booking.ValidationError{Field: "email", Message: "is not a valid address"}, http.StatusBadRequest, `"field":"email"`},
        {"unavailable", &booking.SlotUnavailableError{Date: "2024-12-25", Time: "19:00", PartySize: 4, Remaining: 2}, http.StatusConflict, `"remaining_capacity":2`},
        {"conflict", &booking.ConcurrencyConflictError{Date: "2024-12-25", Time: "19:00", Attempts: 3}, http.StatusConflict, `"retryable":true`},
        {"notFound", booking.ErrNotFound, http.StatusNotFound, "reservation not found"},
        {"internal", errors.New("dial tcp: connection refused"), http.StatusInternalServerError, `"error":"internal error"`},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            e := echo.New()
            rec := httptest.NewRecorder()
            c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
            if err := writeError(c, log, tt.err); err != nil {
                t.Fatalf("writeError: %v", err)
            }
            if rec.Code != tt.code || !strings.Contains(rec.Body.String(), tt.body) {
                t.Fatalf("got %d %s, want %d containing %s", rec.Code, rec.Body.String(), tt.code, tt.body)
            }
            if strings.Contains(rec.Body.String(), "connection refused") {
                t.Fatal("internal error details leaked to the client")
            }
        })
    }
}

func TestParseID(t *testing.T) {
    e := echo.New()
    for raw, want := range map[string]bool{"42": true, "0": false, "-1": false, "abc": false} {
        c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
        c.SetParamNames("id")
        c.SetParamValues(raw)
        if _, ok := parseID(c); ok != want {
            t.Errorf("parseID(%q) ok = %v, want %v", raw, ok, want)
        }
    }
}
