package repository

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/iliyamo/restaurant-reservation/internal/availability"
    "github.com/iliyamo/restaurant-reservation/internal/model"
)

// MemoryReservationRepo keeps reservations in process memory.  It honours
// the same capacity contract as ReservationRepo: a keyed mutex per
// (date, time) serializes writers of one slot, and the seat count is
// re-read while that mutex is held.  It backs local runs without MySQL
// and the service tests.
type MemoryReservationRepo struct {
    mu     sync.RWMutex
    nextID uint64
    rows   map[uint64]model.Reservation

    slotMu sync.Mutex
    slots  map[string]*sync.Mutex
}

// NewMemoryReservationRepo returns an empty in-memory repository.
func NewMemoryReservationRepo() *MemoryReservationRepo {
    return &MemoryReservationRepo{
        rows:  make(map[uint64]model.Reservation),
        slots: make(map[string]*sync.Mutex),
    }
}

func slotKey(date time.Time, slot string) string {
    return date.Format(dateLayout) + "|" + availability.NormalizeTime(slot)
}

// lockSlot acquires the mutex guarding (date, slot) and returns its unlock
// function.
func (r *MemoryReservationRepo) lockSlot(date time.Time, slot string) func() {
    key := slotKey(date, slot)
    r.slotMu.Lock()
    m, ok := r.slots[key]
    if !ok {
        m = &sync.Mutex{}
        r.slots[key] = m
    }
    r.slotMu.Unlock()
    m.Lock()
    return m.Unlock
}

func (r *MemoryReservationRepo) occupied(date time.Time, slot string, excludeID uint64) int {
    key := slotKey(date, slot)
    seats := 0
    for id, res := range r.rows {
        if id == excludeID || !res.Active() {
            continue
        }
        if slotKey(res.Date, res.Time) == key {
            seats += res.PartySize
        }
    }
    return seats
}

// FindReservationsByDate returns the active bookings of date.
func (r *MemoryReservationRepo) FindReservationsByDate(ctx context.Context, date time.Time) ([]model.SlotBooking, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    day := date.Format(dateLayout)
    r.mu.RLock()
    defer r.mu.RUnlock()
    var out []model.SlotBooking
    for _, res := range r.rows {
        if res.Active() && res.Date.Format(dateLayout) == day {
            out = append(out, model.SlotBooking{Time: res.Time, PartySize: res.PartySize})
        }
    }
    return out, nil
}

// GetByID returns a copy of the reservation or ErrNotFound.
func (r *MemoryReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    res, ok := r.rows[id]
    if !ok {
        return nil, ErrNotFound
    }
    return &res, nil
}

// ListByDate returns every reservation of date ordered by time then ID.
func (r *MemoryReservationRepo) ListByDate(ctx context.Context, date time.Time) ([]model.Reservation, error) {
    day := date.Format(dateLayout)
    r.mu.RLock()
    out := []model.Reservation{}
    for _, res := range r.rows {
        if res.Date.Format(dateLayout) == day {
            out = append(out, res)
        }
    }
    r.mu.RUnlock()
    sort.Slice(out, func(i, j int) bool {
        if out[i].Time != out[j].Time {
            return out[i].Time < out[j].Time
        }
        return out[i].ID < out[j].ID
    })
    return out, nil
}

// CreateWithinCapacity stores res if the slot has room for its party.
func (r *MemoryReservationRepo) CreateWithinCapacity(ctx context.Context, res *model.Reservation, maxCapacity int) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    unlock := r.lockSlot(res.Date, res.Time)
    defer unlock()

    r.mu.Lock()
    defer r.mu.Unlock()
    if !availability.Fits(maxCapacity, r.occupied(res.Date, res.Time, 0), res.PartySize) {
        return ErrCapacityExceeded
    }
    r.nextID++
    now := time.Now().UTC()
    res.ID = r.nextID
    res.Time = availability.NormalizeTime(res.Time)
    if res.Status == "" {
        res.Status = model.StatusConfirmed
    }
    res.CreatedAt = now
    res.UpdatedAt = now
    r.rows[res.ID] = *res
    return nil
}

// UpdateWithinCapacity rewrites res.ID after re-checking the target slot.
func (r *MemoryReservationRepo) UpdateWithinCapacity(ctx context.Context, res *model.Reservation, maxCapacity int) (*model.Reservation, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    unlock := r.lockSlot(res.Date, res.Time)
    defer unlock()

    r.mu.Lock()
    defer r.mu.Unlock()
    prev, ok := r.rows[res.ID]
    if !ok {
        return nil, ErrNotFound
    }
    if res.Active() && !availability.Fits(maxCapacity, r.occupied(res.Date, res.Time, res.ID), res.PartySize) {
        return &prev, ErrCapacityExceeded
    }
    res.Time = availability.NormalizeTime(res.Time)
    res.CreatedAt = prev.CreatedAt
    res.UpdatedAt = time.Now().UTC()
    r.rows[res.ID] = *res
    return &prev, nil
}

// Cancel marks the reservation CANCELLED.
func (r *MemoryReservationRepo) Cancel(ctx context.Context, id uint64) (*model.Reservation, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    res, ok := r.rows[id]
    if !ok {
        return nil, ErrNotFound
    }
    if res.Status != model.StatusCancelled {
        res.Status = model.StatusCancelled
        res.UpdatedAt = time.Now().UTC()
        r.rows[id] = res
    }
    return &res, nil
}

// Delete removes the reservation and returns it.
func (r *MemoryReservationRepo) Delete(ctx context.Context, id uint64) (*model.Reservation, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    res, ok := r.rows[id]
    if !ok {
        return nil, ErrNotFound
    }
    delete(r.rows, id)
    return &res, nil
}
