package queue

import (
    "encoding/json"
    "os"
    "path/filepath"
    "strings"
    "testing"
    "time"

    "github.com/iliyamo/restaurant-reservation/internal/model"
)

func TestNewReservationEvent(t *testing.T) {
    res := &model.Reservation{
        ID: 9, Date: time.Date(2024, time.December, 27, 0, 0, 0, 0, time.UTC),
        Time: "01:00", PartySize: 4, Name: "Léa", Email: "lea@example.com", Status: model.StatusConfirmed,
    }
    at := time.Date(2024, time.December, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
    ev := NewReservationEvent(ReservationCreatedQueue, res, at)
    if ev.Date != "2024-12-27" || ev.Time != "01:00" || ev.OccurredAt != "2024-12-01T09:00:00Z" {
        t.Fatalf("event = %+v", ev)
    }
}

func TestHandleAppendsLines(t *testing.T) {
    dir := filepath.Join(t.TempDir(), "logs")
    c := &Consumer{Dir: dir}

    for _, typ := range []string{ReservationCreatedQueue, ReservationCancelledQueue} {
        body, _ := json.Marshal(ReservationEvent{
            Type: typ, ReservationID: 3, Date: "2024-12-25", Time: "19:00",
            PartySize: 2, Name: "Camille", Email: "camille@example.com", OccurredAt: "2024-12-01T09:00:00Z",
        })
        if err := c.Handle(body); err != nil {
            t.Fatalf("Handle(%s): %v", typ, err)
        }
    }

    data, err := os.ReadFile(filepath.Join(dir, LogFileName))
    if err != nil {
        t.Fatalf("read log: %v", err)
    }
    lines := strings.Split(strings.TrimSpace(string(data)), "\n")
    if len(lines) != 2 {
        t.Fatalf("got %d lines, want 2:\n%s", len(lines), data)
    }
    if !strings.Contains(lines[0], "Reservation created") || !strings.Contains(lines[1], "Reservation cancelled") {
        t.Fatalf("unexpected lines:\n%s", data)
    }
    if !strings.Contains(lines[0], "reservation_id=3 | date=2024-12-25 | time=19:00 | guests=2") {
        t.Fatalf("line 0 = %q", lines[0])
    }
}

func TestHandleRejectsBadMessages(t *testing.T) {
    c := &Consumer{Dir: t.TempDir()}
    for _, body := range []string{`not json`, `{"type":"reservation.created"}`} {
        if err := c.Handle([]byte(body)); err == nil {
            t.Errorf("Handle(%s) accepted", body)
        }
    }
}
