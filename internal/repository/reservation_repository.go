package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/dorm-seat-reservation/internal/model"
)

// mysqlDuplicateEntry is the MySQL server error number for a unique key
// violation (ER_DUP_ENTRY).
const mysqlDuplicateEntry = 1062

// ReservationRepo stores reservations in MySQL.  The two unique keys on the
// reservations table (uq_identity, uq_placement) are the authoritative
// conflict check; the lookups here are only advisory.  All timestamp fields
// are stored in UTC.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, room_no, name, dormitory, floor, seat, password_hash, device_id, created_at`

type rowScanner interface {
    Scan(dest ...any) error
}

func scanReservation(row rowScanner) (model.Reservation, error) {
    var r model.Reservation
    var device sql.NullString
    err := row.Scan(&r.ID, &r.RoomNo, &r.Name, &r.Dormitory, &r.Floor, &r.Seat,
        &r.PasswordHash, &device, &r.CreatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return model.Reservation{}, ErrNotFound
        }
        return model.Reservation{}, err
    }
    r.DeviceID = device.String
    r.CreatedAt = r.CreatedAt.UTC()
    return r, nil
}

func nullable(s string) sql.NullString {
    return sql.NullString{String: s, Valid: s != ""}
}

// translateWriteErr turns a MySQL duplicate-key error into a
// UniqueViolation naming the index that fired.  The server message looks
// like: Duplicate entry 'D1-2-5' for key 'reservations.uq_placement'.
func translateWriteErr(err error) error {
    var me *mysql.MySQLError
    if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
        idx := IndexIdentity
        if strings.Contains(me.Message, string(IndexPlacement)) {
            idx = IndexPlacement
        }
        return &UniqueViolation{Index: idx, Err: err}
    }
    return err
}

// FindByID returns the reservation with the given id or ErrNotFound.
func (r *ReservationRepo) FindByID(ctx context.Context, id uint64) (model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? LIMIT 1`
    return scanReservation(r.db.QueryRowContext(ctx, q, id))
}

// FindByIdentity returns the reservation held by (roomNo, name) or ErrNotFound.
func (r *ReservationRepo) FindByIdentity(ctx context.Context, who model.Identity) (model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations WHERE room_no = ? AND name = ? LIMIT 1`
    return scanReservation(r.db.QueryRowContext(ctx, q, who.RoomNo, who.Name))
}

// FindByPlacement returns the reservation occupying the seat or ErrNotFound.
func (r *ReservationRepo) FindByPlacement(ctx context.Context, p model.Placement) (model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations WHERE dormitory = ? AND floor = ? AND seat = ? LIMIT 1`
    return scanReservation(r.db.QueryRowContext(ctx, q, p.Dormitory, p.Floor, p.Seat))
}

// FindByPlacementExcluding is FindByPlacement ignoring the reservation with
// id excludeID, used when moving that reservation.
func (r *ReservationRepo) FindByPlacementExcluding(ctx context.Context, p model.Placement, excludeID uint64) (model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations WHERE dormitory = ? AND floor = ? AND seat = ? AND id <> ? LIMIT 1`
    return scanReservation(r.db.QueryRowContext(ctx, q, p.Dormitory, p.Floor, p.Seat, excludeID))
}

// Insert creates a reservation and populates its generated ID.  A unique
// key rejection is returned as *UniqueViolation.
func (r *ReservationRepo) Insert(ctx context.Context, res *model.Reservation) error {
    const q = `INSERT INTO reservations (room_no, name, dormitory, floor, seat, password_hash, device_id, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
    result, err := r.db.ExecContext(ctx, q, res.RoomNo, res.Name, res.Dormitory, res.Floor, res.Seat,
        res.PasswordHash, nullable(res.DeviceID), res.CreatedAt.UTC())
    if err != nil {
        return translateWriteErr(err)
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    res.ID = uint64(id)
    return nil
}

// UpdatePlacement moves reservation id to p, stamps createdAt with at and,
// when deviceID is non-empty, records it as the binding.  The password and
// identity are untouched.  It returns the row as stored after the update.
func (r *ReservationRepo) UpdatePlacement(ctx context.Context, id uint64, p model.Placement, deviceID string, at time.Time) (model.Reservation, error) {
    const q = `UPDATE reservations
               SET dormitory = ?, floor = ?, seat = ?, created_at = ?, device_id = COALESCE(?, device_id)
               WHERE id = ?`
    if _, err := r.db.ExecContext(ctx, q, p.Dormitory, p.Floor, p.Seat, at.UTC(), nullable(deviceID), id); err != nil {
        return model.Reservation{}, translateWriteErr(err)
    }
    return r.FindByID(ctx, id)
}

const archiveInsert = `INSERT INTO cancelled_reservations
    (reservation_id, room_no, name, dormitory, floor, seat, device_id, created_at, cancelled_at, cancelled_by)`

// Delete removes res.  When c is non-nil the pre-delete snapshot is written
// to cancelled_reservations in the same transaction.  It returns
// ErrNotFound when the row was already gone.
func (r *ReservationRepo) Delete(ctx context.Context, res model.Reservation, c *model.Cancellation) error {
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
    if c != nil {
        snap := c.Snapshot(res)
        if _, err := tx.ExecContext(ctx, archiveInsert+` VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
            snap.ReservationID, snap.RoomNo, snap.Name, snap.Dormitory, snap.Floor, snap.Seat,
            nullable(snap.DeviceID), snap.CreatedAt.UTC(), snap.CancelledAt.UTC(), snap.CancelledBy); err != nil {
            return err
        }
    }
    result, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, res.ID)
    if err != nil {
        return err
    }
    if n, err := result.RowsAffected(); err != nil {
        return err
    } else if n == 0 {
        return ErrNotFound
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// DeleteAll removes every reservation and returns how many were deleted.
// When c is non-nil every row is archived first in the same transaction.
func (r *ReservationRepo) DeleteAll(ctx context.Context, c *model.Cancellation) (int64, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return 0, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if c != nil {
        q := archiveInsert + ` SELECT id, room_no, name, dormitory, floor, seat, device_id, created_at, ?, ?
                               FROM reservations`
        if _, err := tx.ExecContext(ctx, q, c.At.UTC(), c.By); err != nil {
            return 0, err
        }
    }
    result, err := tx.ExecContext(ctx, `DELETE FROM reservations`)
    if err != nil {
        return 0, err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return 0, err
    }
    if err := tx.Commit(); err != nil {
        return 0, err
    }
    committed = true
    return n, nil
}

// ListAll returns every reservation ordered by placement.
func (r *ReservationRepo) ListAll(ctx context.Context) ([]model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations ORDER BY dormitory, floor, seat`
    rows, err := r.db.QueryContext(ctx, q)
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
        out = append(out, res)
    }
    return out, rows.Err()
}

// ListCancelled returns the cancellation audit trail, newest first.
func (r *ReservationRepo) ListCancelled(ctx context.Context) ([]model.CancelledReservation, error) {
    const q = `SELECT id, reservation_id, room_no, name, dormitory, floor, seat, created_at, cancelled_at, cancelled_by
               FROM cancelled_reservations ORDER BY cancelled_at DESC, id DESC`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.CancelledReservation{}
    for rows.Next() {
        var c model.CancelledReservation
        if err := rows.Scan(&c.ID, &c.ReservationID, &c.RoomNo, &c.Name, &c.Dormitory, &c.Floor, &c.Seat,
            &c.CreatedAt, &c.CancelledAt, &c.CancelledBy); err != nil {
            return nil, err
        }
        c.CreatedAt = c.CreatedAt.UTC()
        c.CancelledAt = c.CancelledAt.UTC()
        out = append(out, c)
    }
    return out, rows.Err()
}
