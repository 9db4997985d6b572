package service

import (
	"context"
	"time"

	"github.com/iliyamo/dorm-seat-reservation/internal/model"
	"github.com/iliyamo/dorm-seat-reservation/internal/queue"
)

// ReservationStore is the persistence boundary of the admission logic.
// Lookups return repository.ErrNotFound when nothing matches.  Insert and
// UpdatePlacement return *repository.UniqueViolation when a unique index
// rejects the write; the store, not the lookups, is the final word on
// conflicts.
type ReservationStore interface {
	FindByID(ctx context.Context, id uint64) (model.Reservation, error)
	FindByIdentity(ctx context.Context, who model.Identity) (model.Reservation, error)
	FindByPlacement(ctx context.Context, p model.Placement) (model.Reservation, error)
	FindByPlacementExcluding(ctx context.Context, p model.Placement, excludeID uint64) (model.Reservation, error)
	Insert(ctx context.Context, r *model.Reservation) error
	UpdatePlacement(ctx context.Context, id uint64, p model.Placement, deviceID string, at time.Time) (model.Reservation, error)
	Delete(ctx context.Context, r model.Reservation, c *model.Cancellation) error
	DeleteAll(ctx context.Context, c *model.Cancellation) (int64, error)
	ListAll(ctx context.Context) ([]model.Reservation, error)
	ListCancelled(ctx context.Context) ([]model.CancelledReservation, error)
}

// SettingsStore holds the keyed singletons.  Getters return
// repository.ErrNotFound when the row was never written.
type SettingsStore interface {
	GetSettings(ctx context.Context) (model.AdminSetting, error)
	UpsertSettings(ctx context.Context, s model.AdminSetting) error
	GetAnnouncement(ctx context.Context, key string) (model.Announcement, error)
	UpsertAnnouncement(ctx context.Context, a model.Announcement) error
}

// Hasher is the one-way password primitive.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

// Audience selects which subscribers receive a broadcast.
type Audience int

const (
	AudienceAll Audience = iota
	AudienceAdmins
)

// Realtime event names.
const (
	EventReservationsUpdated      = "reservationsUpdated"
	EventSettingsUpdated          = "settingsUpdated"
	EventAnnouncementUpdated      = "announcementUpdated"
	EventAdminAnnouncementUpdated = "adminAnnouncementUpdated"
	EventBookingWindowChanged     = "bookingWindowChanged"

	EventInitialReservations      = "initialReservations"
	EventInitialSettings          = "initialSettings"
	EventInitialAnnouncement      = "initialAnnouncement"
	EventInitialAdminAnnouncement = "initialAdminAnnouncement"
)

// Notifier fans a committed change out to subscribers.  It is called after
// the store write has succeeded; its error is logged and never turns the
// request into a failure.
type Notifier interface {
	Broadcast(ctx context.Context, event string, payload any, to Audience) error
}

// Journal records accepted mutations on an external stream.
type Journal interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

type nopNotifier struct{}

func (nopNotifier) Broadcast(context.Context, string, any, Audience) error { return nil }

type nopJournal struct{}

func (nopJournal) Publish(context.Context, queue.ReservationEvent) error { return nil }
