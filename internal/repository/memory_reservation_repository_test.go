package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/model"
)

var christmas = time.Date(2024, time.December, 25, 0, 0, 0, 0, time.UTC)

func newRes(slot string, party int) *model.Reservation {
	return &model.Reservation{
		Date: christmas, Time: slot, PartySize: party,
		Name: "Camille", Email: "camille@example.com",
	}
}

func TestMemoryCreateWithinCapacity(t *testing.T) {
	repo := NewMemoryReservationRepo()
	ctx := context.Background()

	if err := repo.CreateWithinCapacity(ctx, newRes("19:00", 48), 50); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := repo.CreateWithinCapacity(ctx, newRes("19:00", 3), 50); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("overflow create error = %v, want ErrCapacityExceeded", err)
	}
	res := newRes("19:00:00", 2)
	if err := repo.CreateWithinCapacity(ctx, res, 50); err != nil {
		t.Fatalf("exact fill: %v", err)
	}
	if res.ID == 0 || res.Status != model.StatusConfirmed || res.Time != "19:00" {
		t.Fatalf("unexpected saved reservation: %+v", res)
	}

	bookings, err := repo.FindReservationsByDate(ctx, christmas)
	if err != nil {
		t.Fatalf("FindReservationsByDate: %v", err)
	}
	total := 0
	for _, b := range bookings {
		total += b.PartySize
	}
	if total != 50 {
		t.Fatalf("booked seats = %d, want 50", total)
	}
}

func TestMemoryConcurrentCreatesNeverOverbook(t *testing.T) {
	repo := NewMemoryReservationRepo()
	ctx := context.Background()

	var ok, full int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.CreateWithinCapacity(ctx, newRes("20:00", 3), 50)
			switch {
			case err == nil:
				atomic.AddInt64(&ok, 1)
			case errors.Is(err, ErrCapacityExceeded):
				atomic.AddInt64(&full, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 16 || full != 184 {
		t.Fatalf("ok=%d full=%d, want 16 accepted (48 seats) and 184 rejected", ok, full)
	}
}

func TestMemoryUpdateRechecksTargetSlot(t *testing.T) {
	repo := NewMemoryReservationRepo()
	ctx := context.Background()

	if err := repo.CreateWithinCapacity(ctx, newRes("19:00", 45), 50); err != nil {
		t.Fatalf("seed: %v", err)
	}
	mine := newRes("19:15", 10)
	if err := repo.CreateWithinCapacity(ctx, mine, 50); err != nil {
		t.Fatalf("create: %v", err)
	}

	moved := *mine
	moved.Time = "19:00"
	if _, err := repo.UpdateWithinCapacity(ctx, &moved, 50); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("re-time into full slot error = %v, want ErrCapacityExceeded", err)
	}

	// Growing a party in place only counts the other guests.
	grown := *mine
	grown.PartySize = 50
	prev, err := repo.UpdateWithinCapacity(ctx, &grown, 50)
	if err != nil {
		t.Fatalf("grow in place: %v", err)
	}
	if prev.PartySize != 10 {
		t.Fatalf("previous party size = %d, want 10", prev.PartySize)
	}

	missing := *mine
	missing.ID = 999
	if _, err := repo.UpdateWithinCapacity(ctx, &missing, 50); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing error = %v, want ErrNotFound", err)
	}
}

func TestMemoryCancelReleasesSeats(t *testing.T) {
	repo := NewMemoryReservationRepo()
	ctx := context.Background()

	big := newRes("21:00", 50)
	if err := repo.CreateWithinCapacity(ctx, big, 50); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.CreateWithinCapacity(ctx, newRes("21:00", 1), 50); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected full slot, got %v", err)
	}
	cancelled, err := repo.Cancel(ctx, big.ID)
	if err != nil || cancelled.Status != model.StatusCancelled {
		t.Fatalf("Cancel = %+v, %v", cancelled, err)
	}
	if err := repo.CreateWithinCapacity(ctx, newRes("21:00", 4), 50); err != nil {
		t.Fatalf("create after cancel: %v", err)
	}

	list, err := repo.ListByDate(ctx, christmas)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListByDate = %d rows, %v; want 2 including the cancelled one", len(list), err)
	}

	if _, err := repo.Delete(ctx, big.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, big.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID after delete error = %v, want ErrNotFound", err)
	}
	if _, err := repo.Cancel(ctx, big.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Cancel after delete error = %v, want ErrNotFound", err)
	}
}

func TestMemoryTokenRepo(t *testing.T) {
	repo := NewMemoryTokenRepo()
	ctx := context.Background()
	_ = repo.StoreRefresh(ctx, 7, "live", time.Now().Add(time.Hour))
	_ = repo.StoreRefresh(ctx, 7, "stale", time.Now().Add(-time.Hour))

	if uid, err := repo.ConsumeRefresh(ctx, "live"); err != nil || uid != 7 {
		t.Fatalf("ConsumeRefresh(live) = %d, %v", uid, err)
	}
	if _, err := repo.ConsumeRefresh(ctx, "live"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("spent token accepted: %v", err)
	}
	if _, err := repo.ConsumeRefresh(ctx, "stale"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired token accepted: %v", err)
	}
	if _, err := repo.ConsumeRefresh(ctx, "unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown token accepted: %v", err)
	}
	if n, _ := repo.PurgeExpired(ctx, time.Now()); n != 1 {
		t.Fatalf("PurgeExpired removed %d, want 1", n)
	}
}

func TestMemoryConsumeRefreshOnce(t *testing.T) {
	repo := NewMemoryTokenRepo()
	ctx := context.Background()
	_ = repo.StoreRefresh(ctx, 3, "shared", time.Now().Add(time.Hour))

	var won int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ConsumeRefresh(ctx, "shared"); err == nil {
				atomic.AddInt64(&won, 1)
			}
		}()
	}
	wg.Wait()
	if won != 1 {
		t.Fatalf("%d concurrent refreshes succeeded with one token, want 1", won)
	}
}
