package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/restaurant-reservation/internal/availability"
    "github.com/iliyamo/restaurant-reservation/internal/model"
)

const dateLayout = "2006-01-02"

// MySQL error numbers that indicate the transaction lost a race with a
// concurrent writer and can be retried.
const (
    errLockWaitTimeout = 1205
    errDeadlock        = 1213
)

// ReservationRepo provides CRUD operations for reservations.  Writes that
// add seats to a slot go through a per-(date, time) lock row in the
// reservation_slot_locks table: the row is locked with SELECT ... FOR
// UPDATE, the seats already booked are summed and the ceiling is checked
// before the reservation row is written, all inside one transaction.
// Concurrent bookings for the same slot are therefore serialized while
// bookings for different slots proceed in parallel.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo {
    if db == nil {
        panic("nil db passed to NewReservationRepo")
    }
    return &ReservationRepo{db: db}
}

// DB exposes the underlying pool for health checks.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationColumns = `id, reservation_date, reservation_time, party_size, customer_name,
    email, phone, COALESCE(notes, ''), status, created_at, updated_at`

type rowScanner interface {
    Scan(dest ...any) error
}

func scanReservation(s rowScanner) (*model.Reservation, error) {
    var res model.Reservation
    err := s.Scan(&res.ID, &res.Date, &res.Time, &res.PartySize, &res.Name,
        &res.Email, &res.Phone, &res.Notes, &res.Status, &res.CreatedAt, &res.UpdatedAt)
    if err != nil {
        return nil, err
    }
    res.Time = availability.NormalizeTime(res.Time)
    return &res, nil
}

// FindReservationsByDate returns the slot and party size of every
// non-cancelled reservation on date.
func (r *ReservationRepo) FindReservationsByDate(ctx context.Context, date time.Time) ([]model.SlotBooking, error) {
    const q = `SELECT reservation_time, party_size FROM reservations
               WHERE reservation_date = ? AND status <> ?`
    rows, err := r.db.QueryContext(ctx, q, date.Format(dateLayout), model.StatusCancelled)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.SlotBooking
    for rows.Next() {
        var b model.SlotBooking
        if err := rows.Scan(&b.Time, &b.PartySize); err != nil {
            return nil, err
        }
        out = append(out, b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// GetByID returns a single reservation or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
    res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    return res, err
}

// ListByDate returns every reservation of a dining day, cancelled ones
// included, ordered by slot time then creation.
func (r *ReservationRepo) ListByDate(ctx context.Context, date time.Time) ([]model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations
          WHERE reservation_date = ?
          ORDER BY reservation_time, id`
    rows, err := r.db.QueryContext(ctx, q, date.Format(dateLayout))
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.Reservation{}
    for rows.Next() {
        res, err := scanReservation(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *res)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// CreateWithinCapacity inserts res if the slot still has room for its
// party.  It fills in the generated ID, status and timestamps on success
// and returns ErrCapacityExceeded when the slot is full.
func (r *ReservationRepo) CreateWithinCapacity(ctx context.Context, res *model.Reservation, maxCapacity int) error {
    return r.inTx(ctx, func(tx *sql.Tx) error {
        date := res.Date.Format(dateLayout)
        if err := lockSlotTx(ctx, tx, date, res.Time); err != nil {
            return err
        }
        occupied, err := occupiedTx(ctx, tx, date, res.Time, 0)
        if err != nil {
            return err
        }
        if !availability.Fits(maxCapacity, occupied, res.PartySize) {
            return ErrCapacityExceeded
        }
        if res.Status == "" {
            res.Status = model.StatusConfirmed
        }
        const ins = `INSERT INTO reservations
            (reservation_date, reservation_time, party_size, customer_name, email, phone, notes, status)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
        result, err := tx.ExecContext(ctx, ins, date, res.Time, res.PartySize, res.Name,
            res.Email, res.Phone, nullIfEmpty(res.Notes), res.Status)
        if err != nil {
            return err
        }
        id, err := result.LastInsertId()
        if err != nil {
            return err
        }
        // Query back the full row to populate timestamps and defaults
        saved, err := scanReservation(tx.QueryRowContext(ctx,
            `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
        if err != nil {
            return err
        }
        *res = *saved
        return nil
    })
}

// UpdateWithinCapacity rewrites the reservation identified by res.ID.  When
// the reservation is active the target slot is locked and re-checked,
// excluding the reservation's own seats, so that re-timing or growing a
// party cannot overbook.  The previous state is returned.
func (r *ReservationRepo) UpdateWithinCapacity(ctx context.Context, res *model.Reservation, maxCapacity int) (*model.Reservation, error) {
    var before *model.Reservation
    err := r.inTx(ctx, func(tx *sql.Tx) error {
        prev, err := scanReservation(tx.QueryRowContext(ctx,
            `SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, res.ID))
        if errors.Is(err, sql.ErrNoRows) {
            return ErrNotFound
        }
        if err != nil {
            return err
        }
        before = prev
        date := res.Date.Format(dateLayout)
        if res.Active() {
            if err := lockSlotTx(ctx, tx, date, res.Time); err != nil {
                return err
            }
            occupied, err := occupiedTx(ctx, tx, date, res.Time, res.ID)
            if err != nil {
                return err
            }
            if !availability.Fits(maxCapacity, occupied, res.PartySize) {
                return ErrCapacityExceeded
            }
        }
        const upd = `UPDATE reservations
            SET reservation_date = ?, reservation_time = ?, party_size = ?, customer_name = ?,
                email = ?, phone = ?, notes = ?, status = ?
            WHERE id = ?`
        if _, err := tx.ExecContext(ctx, upd, date, res.Time, res.PartySize, res.Name,
            res.Email, res.Phone, nullIfEmpty(res.Notes), res.Status, res.ID); err != nil {
            return err
        }
        saved, err := scanReservation(tx.QueryRowContext(ctx,
            `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, res.ID))
        if err != nil {
            return err
        }
        *res = *saved
        return nil
    })
    return before, err
}

// Cancel marks a reservation as CANCELLED, releasing its seats, and
// returns the updated row.  Cancelling twice is not an error.
func (r *ReservationRepo) Cancel(ctx context.Context, id uint64) (*model.Reservation, error) {
    var out *model.Reservation
    err := r.inTx(ctx, func(tx *sql.Tx) error {
        res, err := scanReservation(tx.QueryRowContext(ctx,
            `SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id))
        if errors.Is(err, sql.ErrNoRows) {
            return ErrNotFound
        }
        if err != nil {
            return err
        }
        if res.Status != model.StatusCancelled {
            if _, err := tx.ExecContext(ctx,
                `UPDATE reservations SET status = ? WHERE id = ?`, model.StatusCancelled, id); err != nil {
                return err
            }
            res.Status = model.StatusCancelled
            res.UpdatedAt = time.Now().UTC()
        }
        out = res
        return nil
    })
    return out, err
}

// Delete removes a reservation and returns the row as it was.
func (r *ReservationRepo) Delete(ctx context.Context, id uint64) (*model.Reservation, error) {
    var out *model.Reservation
    err := r.inTx(ctx, func(tx *sql.Tx) error {
        res, err := scanReservation(tx.QueryRowContext(ctx,
            `SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id))
        if errors.Is(err, sql.ErrNoRows) {
            return ErrNotFound
        }
        if err != nil {
            return err
        }
        if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id); err != nil {
            return err
        }
        out = res
        return nil
    })
    return out, err
}

// inTx runs fn inside a transaction, committing on success and rolling
// back otherwise.  MySQL deadlocks and lock wait timeouts surface as
// ErrConflict.
func (r *ReservationRepo) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if err := fn(tx); err != nil {
        return translateTxErr(err)
    }
    if err := tx.Commit(); err != nil {
        return translateTxErr(err)
    }
    committed = true
    return nil
}

// lockSlotTx makes sure the lock row for (date, slot) exists and holds an
// exclusive lock on it until the transaction ends.
func lockSlotTx(ctx context.Context, tx *sql.Tx, date, slot string) error {
    if _, err := tx.ExecContext(ctx,
        `INSERT IGNORE INTO reservation_slot_locks (reservation_date, reservation_time) VALUES (?, ?)`,
        date, slot); err != nil {
        return err
    }
    var locked string
    return tx.QueryRowContext(ctx,
        `SELECT reservation_time FROM reservation_slot_locks
         WHERE reservation_date = ? AND reservation_time = ? FOR UPDATE`,
        date, slot).Scan(&locked)
}

// occupiedTx sums the active party sizes at (date, slot), ignoring the
// reservation excludeID (0 excludes nothing).
func occupiedTx(ctx context.Context, tx *sql.Tx, date, slot string, excludeID uint64) (int, error) {
    var seats int
    err := tx.QueryRowContext(ctx,
        `SELECT COALESCE(SUM(party_size), 0) FROM reservations
         WHERE reservation_date = ? AND reservation_time = ? AND status <> ? AND id <> ?`,
        date, slot, model.StatusCancelled, excludeID).Scan(&seats)
    return seats, err
}

func translateTxErr(err error) error {
    var me *mysql.MySQLError
    if errors.As(err, &me) && (me.Number == errDeadlock || me.Number == errLockWaitTimeout) {
        return ErrConflict
    }
    return err
}

func nullIfEmpty(s string) any {
    if strings.TrimSpace(s) == "" {
        return nil
    }
    return s
}
