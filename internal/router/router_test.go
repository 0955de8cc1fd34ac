package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/restaurant-reservation/internal/booking"
	"github.com/iliyamo/restaurant-reservation/internal/config"
	"github.com/iliyamo/restaurant-reservation/internal/handler"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
	"github.com/iliyamo/restaurant-reservation/internal/schedule"
)

const secret = "test-secret"

var frozen = time.Date(2024, time.December, 1, 12, 0, 0, 0, time.UTC)

type app struct {
	e     *echo.Echo
	users *repository.MemoryUserRepo
}

func newApp(t *testing.T) app {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := booking.NewService(repository.NewMemoryReservationRepo(), schedule.DefaultRules(time.UTC), booking.Options{
		MaxCapacity: 50,
		Logger:      log,
	})
	now := func() time.Time { return frozen }
	users := repository.NewMemoryUserRepo()
	cfg := config.Config{JWTSecret: secret, AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: bcrypt.MinCost}

	e := echo.New()
	RegisterRoutes(e, map[string]handler.Check{
		"noop": func(context.Context) error { return nil },
	})
	RegisterPublic(e, handler.NewReservationHandler(svc, now, log), nil, nil)
	RegisterAuth(e, handler.NewAuthHandler(cfg, users, repository.NewMemoryTokenRepo()), secret)
	RegisterAdmin(e, handler.NewAdminReservationHandler(svc, now, log), secret)
	return app{e: e, users: users}
}

func (a app) do(t *testing.T, method, target, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func reservationBody(date, slot string, party int) string {
	return `{"date":"` + date + `","time":"` + slot + `","number_of_people":` + itoa(party) +
		`,"name":"Camille Martin","email":"camille@example.com","phone":"+33 6 12 34 56 78"}`
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestProbes(t *testing.T) {
	a := newApp(t)
	if rec := a.do(t, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
	if rec := a.do(t, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d %s", rec.Code, rec.Body.String())
	}

	e := echo.New()
	RegisterRoutes(e, map[string]handler.Check{
		"mysql": func(context.Context) error { return errors.New("connection refused") },
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("failing readyz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestOpeningHours(t *testing.T) {
	a := newApp(t)
	tests := []struct {
		date      string
		close     string
		lateNight bool
	}{
		{"2024-12-24", "01:45", true},  // Christmas Eve
		{"2024-12-25", "21:30", false}, // Christmas Day, a Wednesday
		{"2024-12-27", "01:45", true},  // Friday
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			rec := a.do(t, http.MethodGet, "/v1/opening-hours?date="+tt.date, "", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
			}
			var out booking.OpeningHours
			decode(t, rec, &out)
			if out.Open != "18:00" || out.Close != tt.close || out.LateNight != tt.lateNight {
				t.Fatalf("hours = %+v", out)
			}
		})
	}

	rec := a.do(t, http.MethodGet, "/v1/opening-hours?date=25/12/2024", "", "")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), `"field":"date"`) {
		t.Fatalf("bad date = %d %s", rec.Code, rec.Body.String())
	}
}

func TestBookingFlow(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/v1/reservations", reservationBody("2024-12-25", "19:00", 48), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID     uint64 `json:"id"`
		Date   string `json:"date"`
		Time   string `json:"time"`
		Status string `json:"status"`
	}
	decode(t, rec, &created)
	if created.ID == 0 || created.Date != "2024-12-25" || created.Time != "19:00" || created.Status != model.StatusConfirmed {
		t.Fatalf("created = %+v", created)
	}

	rec = a.do(t, http.MethodPost, "/v1/reservations/check-availability",
		`{"date":"2024-12-25","time":"19:00","number_of_people":3}`, "")
	var avail booking.Availability
	decode(t, rec, &avail)
	if rec.Code != http.StatusOK || avail.Available || avail.RemainingCapacity != 2 {
		t.Fatalf("check-availability = %d %+v", rec.Code, avail)
	}

	rec = a.do(t, http.MethodPost, "/v1/reservations", reservationBody("2024-12-25", "19:00", 3), "")
	if rec.Code != http.StatusConflict || !strings.Contains(rec.Body.String(), `"code":"slot_unavailable"`) {
		t.Fatalf("overbook = %d %s", rec.Code, rec.Body.String())
	}

	rec = a.do(t, http.MethodGet, "/v1/reservations/available-slots?date=2024-12-25", "", "")
	var day booking.DaySlots
	decode(t, rec, &day)
	if rec.Code != http.StatusOK || len(day.Slots) != 14 {
		t.Fatalf("available-slots = %d, %d slots", rec.Code, len(day.Slots))
	}
	for _, s := range day.Slots {
		want := 50
		if s.Time == "19:00" {
			want = 2
		}
		if s.RemainingCapacity != want {
			t.Fatalf("slot %s remaining = %d, want %d", s.Time, s.RemainingCapacity, want)
		}
	}

	bad := []struct {
		name, body, field string
	}{
		{"closed", reservationBody("2024-12-25", "22:00", 2), "time"},
		{"offGrid", reservationBody("2024-12-25", "19:10", 2), "time"},
		{"badDate", reservationBody("2024-02-30", "19:00", 2), "date"},
		{"tooMany", reservationBody("2024-12-25", "19:15", 51), "number_of_people"},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, http.MethodPost, "/v1/reservations", tt.body, "")
			if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), `"field":"`+tt.field+`"`) {
				t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
			}
		})
	}
}

type tokens struct {
	Access struct {
		Token string `json:"token"`
	} `json:"access"`
	Refresh struct {
		Token string `json:"token"`
	} `json:"refresh"`
}

func login(t *testing.T, a app) tokens {
	t.Helper()
	if _, err := a.users.Create(context.Background(), "chef@example.com", "correct horse", model.RoleAdmin, bcrypt.MinCost); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if rec := a.do(t, http.MethodPost, "/v1/auth/login", `{"email":"chef@example.com","password":"wrong"}`, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password = %d", rec.Code)
	}
	rec := a.do(t, http.MethodPost, "/v1/auth/login", `{"email":"Chef@Example.com","password":"correct horse"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d %s", rec.Code, rec.Body.String())
	}
	var tk tokens
	decode(t, rec, &tk)
	return tk
}

func TestAdminReservations(t *testing.T) {
	a := newApp(t)
	tk := login(t, a)

	for _, slot := range []string{"19:00", "20:30"} {
		if rec := a.do(t, http.MethodPost, "/v1/reservations", reservationBody("2024-12-25", slot, 4), ""); rec.Code != http.StatusCreated {
			t.Fatalf("seed %s = %d %s", slot, rec.Code, rec.Body.String())
		}
	}

	if rec := a.do(t, http.MethodGet, "/v1/admin/reservations?date=2024-12-25", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list = %d", rec.Code)
	}

	rec := a.do(t, http.MethodGet, "/v1/admin/reservations?date=2024-12-25", "", tk.Access.Token)
	var list struct {
		Reservations []struct {
			ID uint64 `json:"id"`
		} `json:"reservations"`
		TotalGuests int `json:"total_guests"`
	}
	decode(t, rec, &list)
	if rec.Code != http.StatusOK || len(list.Reservations) != 2 || list.TotalGuests != 8 {
		t.Fatalf("list = %d %s", rec.Code, rec.Body.String())
	}
	first := itoa(int(list.Reservations[0].ID))
	second := itoa(int(list.Reservations[1].ID))

	rec = a.do(t, http.MethodPut, "/v1/admin/reservations/"+first, reservationBody("2024-12-25", "19:30", 6), tk.Access.Token)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"time":"19:30"`) {
		t.Fatalf("update = %d %s", rec.Code, rec.Body.String())
	}

	rec = a.do(t, http.MethodPost, "/v1/admin/reservations/"+first+"/cancel", "", tk.Access.Token)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"`+model.StatusCancelled+`"`) {
		t.Fatalf("cancel = %d %s", rec.Code, rec.Body.String())
	}

	if rec := a.do(t, http.MethodDelete, "/v1/admin/reservations/"+second, "", tk.Access.Token); rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d %s", rec.Code, rec.Body.String())
	}
	if rec := a.do(t, http.MethodGet, "/v1/admin/reservations/"+second, "", tk.Access.Token); rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted = %d", rec.Code)
	}
	if rec := a.do(t, http.MethodGet, "/v1/admin/reservations/abc", "", tk.Access.Token); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d", rec.Code)
	}
}

func TestAuthSession(t *testing.T) {
	a := newApp(t)
	tk := login(t, a)

	rec := a.do(t, http.MethodGet, "/v1/me", "", tk.Access.Token)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"email":"chef@example.com"`) {
		t.Fatalf("me = %d %s", rec.Code, rec.Body.String())
	}

	rec = a.do(t, http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+tk.Refresh.Token+`"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh = %d %s", rec.Code, rec.Body.String())
	}
	var rotated tokens
	decode(t, rec, &rotated)
	if rotated.Refresh.Token == tk.Refresh.Token {
		t.Fatal("refresh token was not rotated")
	}
	if rec := a.do(t, http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+tk.Refresh.Token+`"}`, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh = %d", rec.Code)
	}

	if rec := a.do(t, http.MethodPost, "/v1/auth/logout", `{"refresh_token":"`+rotated.Refresh.Token+`"}`, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("logout = %d %s", rec.Code, rec.Body.String())
	}
	if rec := a.do(t, http.MethodPost, "/v1/auth/logout", `{"refresh_token":"`+rotated.Refresh.Token+`"}`, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("second logout = %d", rec.Code)
	}
}
