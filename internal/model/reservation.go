package model

import "time"

// Identity is the (roomNo, name) tuple identifying a requester.  At most one
// reservation exists per identity.
type Identity struct {
    RoomNo string `json:"roomNo"`
    Name   string `json:"name"`
}

// Placement is the (dormitory, floor, seat) tuple identifying a physical
// seat.  At most one reservation exists per placement.
type Placement struct {
    Dormitory string `json:"dormitory"`
    Floor     string `json:"floor"`
    Seat      int    `json:"seat"`
}

// Reservation represents a row in the `reservations` table.  The password
// hash and the device binding never leave the server.
//
// Fields:
//  ID           – primary key identifier.
//  Identity     – requester key; unique (uq_identity).
//  Placement    – seat key; unique (uq_placement).
//  PasswordHash – bcrypt hash of the reservation password.
//  DeviceID     – optional client token the reservation is bound to.
//  CreatedAt    – creation time, bumped on every placement change.
type Reservation struct {
    ID uint64 `json:"id"` // reservations.id
    Identity
    Placement
    PasswordHash string    `json:"-"`         // reservations.password_hash
    DeviceID     string    `json:"-"`         // reservations.device_id (nullable)
    CreatedAt    time.Time `json:"createdAt"` // reservations.created_at
}

// Bound reports whether the reservation carries a device binding.
func (r Reservation) Bound() bool { return r.DeviceID != "" }

// Cancellation describes who removed a reservation and when.  It is passed
// to the store so the audit snapshot and the delete happen together.
type Cancellation struct {
    By string    // owner | admin | admin-bulk
    At time.Time // UTC
}

// Cancellation actors.
const (
    CancelledByOwner     = "owner"
    CancelledByAdmin     = "admin"
    CancelledByAdminBulk = "admin-bulk"
)

// CancelledReservation is an append-only audit row in the
// `cancelled_reservations` table capturing a reservation as it was right
// before deletion.
type CancelledReservation struct {
    ID            uint64 `json:"id"`            // cancelled_reservations.id
    ReservationID uint64 `json:"reservationId"` // original reservations.id
    Identity
    Placement
    DeviceID    string    `json:"-"`
    CreatedAt   time.Time `json:"createdAt"`
    CancelledAt time.Time `json:"cancelledAt"`
    CancelledBy string    `json:"cancelledBy"`
}

// Snapshot builds the audit row for r.
func (c Cancellation) Snapshot(r Reservation) CancelledReservation {
    return CancelledReservation{
        ReservationID: r.ID,
        Identity:      r.Identity,
        Placement:     r.Placement,
        DeviceID:      r.DeviceID,
        CreatedAt:     r.CreatedAt,
        CancelledAt:   c.At,
        CancelledBy:   c.By,
    }
}
