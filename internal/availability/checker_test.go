package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/model"
)

type fakeStore struct {
	byDate map[string][]model.SlotBooking
	err    error
	calls  int
}

func (f *fakeStore) FindReservationsByDate(_ context.Context, date time.Time) ([]model.SlotBooking, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.byDate[date.Format("2006-01-02")], nil
}

var christmas = time.Date(2024, time.December, 25, 0, 0, 0, 0, time.UTC)

func christmasStore() *fakeStore {
	return &fakeStore{byDate: map[string][]model.SlotBooking{
		"2024-12-25": {
			{Time: "19:00", PartySize: 20},
			{Time: "19:00:00", PartySize: 20},
			{Time: "19:00", PartySize: 8},
			{Time: "19:15", PartySize: 6},
		},
	}}
}

func TestIsSlotAvailable(t *testing.T) {
	c := NewChecker(christmasStore(), 50)
	ctx := context.Background()
	tests := []struct {
		name      string
		slot      string
		partySize int
		want      bool
	}{
		{"overflowsByOne", "19:00", 3, false},
		{"fillsExactly", "19:00", 2, true},
		{"neighbourSlotIsIndependent", "19:15", 44, true},
		{"neighbourSlotOverflow", "19:15", 45, false},
		{"emptySlot", "20:00", 50, true},
		{"emptySlotTooBig", "20:00", 51, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.IsSlotAvailable(ctx, christmas, tt.slot, tt.partySize)
			if err != nil {
				t.Fatalf("IsSlotAvailable: %v", err)
			}
			if got != tt.want {
				t.Fatalf("IsSlotAvailable(%s, %d) = %v, want %v", tt.slot, tt.partySize, got, tt.want)
			}
		})
	}
}

func TestRemainingCapacity(t *testing.T) {
	c := NewChecker(christmasStore(), 50)
	ctx := context.Background()
	tests := map[string]int{
		"19:00": 2,
		"19:15": 44,
		"21:00": 50,
	}
	for slot, want := range tests {
		got, err := c.RemainingCapacity(ctx, christmas, slot)
		if err != nil {
			t.Fatalf("RemainingCapacity: %v", err)
		}
		if got != want {
			t.Errorf("RemainingCapacity(%s) = %d, want %d", slot, got, want)
		}
	}
}

func TestRemainingCapacityNeverNegative(t *testing.T) {
	store := &fakeStore{byDate: map[string][]model.SlotBooking{
		"2024-12-25": {{Time: "19:00", PartySize: 40}, {Time: "19:00", PartySize: 30}},
	}}
	c := NewChecker(store, 50)
	got, err := c.RemainingCapacity(context.Background(), christmas, "19:00")
	if err != nil {
		t.Fatalf("RemainingCapacity: %v", err)
	}
	if got != 0 {
		t.Fatalf("RemainingCapacity = %d, want 0 when overbooked", got)
	}
	if occ, _ := c.OccupiedSeats(context.Background(), christmas, "19:00"); occ != 70 {
		t.Fatalf("OccupiedSeats = %d, want 70", occ)
	}
}

func TestSnapshotLoadsOnce(t *testing.T) {
	store := christmasStore()
	c := NewChecker(store, 50)
	occ, err := c.Snapshot(context.Background(), christmas)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for _, slot := range []string{"18:00", "19:00", "19:15", "19:30"} {
		_ = occ.Remaining(slot)
	}
	if store.calls != 1 {
		t.Fatalf("store called %d times, want 1", store.calls)
	}
	if occ.Occupied("19:00") != 48 {
		t.Fatalf("Occupied(19:00) = %d, want 48", occ.Occupied("19:00"))
	}
}

func TestStoreError(t *testing.T) {
	boom := errors.New("db down")
	c := NewChecker(&fakeStore{err: boom}, 50)
	if _, err := c.IsSlotAvailable(context.Background(), christmas, "19:00", 2); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
}

func TestDefaultCapacity(t *testing.T) {
	if got := NewChecker(&fakeStore{}, 0).MaxCapacity(); got != DefaultMaxCapacity {
		t.Fatalf("MaxCapacity = %d, want %d", got, DefaultMaxCapacity)
	}
}

func TestFitsAndRemaining(t *testing.T) {
	for occupied := 0; occupied <= 60; occupied++ {
		for party := 1; party <= 12; party++ {
			want := occupied+party <= 50
			if Fits(50, occupied, party) != want {
				t.Fatalf("Fits(50, %d, %d) != %v", occupied, party, want)
			}
		}
		r := Remaining(50, occupied)
		if r < 0 || (occupied <= 50 && r != 50-occupied) {
			t.Fatalf("Remaining(50, %d) = %d", occupied, r)
		}
	}
}
