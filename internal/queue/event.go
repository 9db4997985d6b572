// Package queue defines message payloads exchanged over the message broker.
package queue

// Journal actions.
const (
    ActionCreated       = "created"
    ActionMoved         = "moved"
    ActionCancelled     = "cancelled"
    ActionBulkCancelled = "bulk_cancelled"
)

// ReservationEvent is published after every accepted reservation mutation.
// It carries enough of the reservation for downstream consumers to keep an
// audit log without querying the primary database.  Deleted is only set for
// bulk cancellations, where no single reservation applies.
type ReservationEvent struct {
    Action        string `json:"action"`
    Actor         string `json:"actor"`
    ReservationID uint64 `json:"reservation_id,omitempty"`
    RoomNo        string `json:"room_no,omitempty"`
    Name          string `json:"name,omitempty"`
    Dormitory     string `json:"dormitory,omitempty"`
    Floor         string `json:"floor,omitempty"`
    Seat          int    `json:"seat,omitempty"`
    Deleted       int64  `json:"deleted,omitempty"`
    OccurredAt    string `json:"occurred_at"`
}
