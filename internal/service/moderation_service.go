package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/dorm-seat-reservation/internal/model"
	"github.com/iliyamo/dorm-seat-reservation/internal/repository"
	"github.com/iliyamo/dorm-seat-reservation/internal/utils"
)

const maxAnnouncement = 2000

// LoginResult is returned by a successful admin login.
type LoginResult struct {
	Name  string
	Token utils.AccessToken
}

// InitialEvent is one message of the snapshot a subscriber receives on
// connect.
type InitialEvent struct {
	Event   string
	Payload any
}

// ModerationService manages the admin-owned singletons: the booking window
// and the two announcements.
type ModerationService struct {
	d Deps
}

// NewModerationService constructs the service.  It panics if a required
// dependency is missing.
func NewModerationService(d Deps) *ModerationService {
	d.fill()
	return &ModerationService{d: d}
}

// Settings returns the booking window.  A never-written window comes back
// as the zero value, which reads as closed.
func (s *ModerationService) Settings(ctx context.Context) (model.AdminSetting, error) {
	ctx, cancel := s.d.bound(ctx)
	defer cancel()
	st, err := s.d.settings(ctx)
	if err != nil {
		return model.AdminSetting{}, s.d.failed("get settings", err)
	}
	if st == nil {
		return model.AdminSetting{}, nil
	}
	return *st, nil
}

// BookingOpen reports whether the window is open at this instant.
func (s *ModerationService) BookingOpen(ctx context.Context) (bool, error) {
	st, err := s.Settings(ctx)
	if err != nil {
		return false, err
	}
	return IsBookingOpen(&st, s.d.now()), nil
}

// UpdateSettings replaces the booking window.  Either bound may be nil,
// which closes the window.
func (s *ModerationService) UpdateSettings(ctx context.Context, cred AdminCredential, start, end *time.Time) (model.AdminSetting, error) {
	if _, err := s.d.Admins.Verify(cred); err != nil {
		return model.AdminSetting{}, s.d.failed("update settings", err)
	}
	if start != nil && end != nil && end.Before(*start) {
		return model.AdminSetting{}, invalid("reservationEndTime must not be before reservationStartTime")
	}
	ctx, cancel := s.d.bound(ctx)
	defer cancel()

	st := model.AdminSetting{
		ReservationStartTime: utcPtr(start),
		ReservationEndTime:   utcPtr(end),
		UpdatedAt:            s.d.now(),
	}
	if err := s.d.Settings.UpsertSettings(ctx, st); err != nil {
		return model.AdminSetting{}, s.d.failed("update settings", storeErr("upsert settings", err))
	}
	bctx, bcancel := s.d.detached(ctx)
	defer bcancel()
	s.d.broadcast(bctx, EventSettingsUpdated, st, AudienceAll)
	return st, nil
}

// SeedWindow writes the booking window from configuration unless one is
// already stored.  It runs once at startup.
func (s *ModerationService) SeedWindow(ctx context.Context, start, end *time.Time) error {
	if start == nil && end == nil {
		return nil
	}
	ctx, cancel := s.d.bound(ctx)
	defer cancel()
	cur, err := s.d.settings(ctx)
	if err != nil {
		return err
	}
	if cur != nil {
		return nil
	}
	return s.d.Settings.UpsertSettings(ctx, model.AdminSetting{
		ReservationStartTime: utcPtr(start),
		ReservationEndTime:   utcPtr(end),
		UpdatedAt:            s.d.now(),
	})
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func announcementEvent(key string) (string, Audience) {
	if key == model.AnnouncementAdmin {
		return EventAdminAnnouncementUpdated, AudienceAdmins
	}
	return EventAnnouncementUpdated, AudienceAll
}

func (s *ModerationService) announcement(ctx context.Context, key string) (model.Announcement, error) {
	ctx, cancel := s.d.bound(ctx)
	defer cancel()
	a, err := s.d.Settings.GetAnnouncement(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Announcement{Key: key}, nil
	}
	if err != nil {
		return model.Announcement{}, s.d.failed("get announcement", storeErr("load announcement", err))
	}
	return a, nil
}

// Announcement returns the public announcement; an unset one is empty and
// inactive.
func (s *ModerationService) Announcement(ctx context.Context) (model.Announcement, error) {
	return s.announcement(ctx, model.AnnouncementPublic)
}

// AdminAnnouncement returns the admin-only announcement.
func (s *ModerationService) AdminAnnouncement(ctx context.Context, cred AdminCredential) (model.Announcement, error) {
	if _, err := s.d.Admins.Verify(cred); err != nil {
		return model.Announcement{}, s.d.failed("get admin announcement", err)
	}
	return s.announcement(ctx, model.AnnouncementAdmin)
}

// UpdateAnnouncement replaces the announcement stored under key.
func (s *ModerationService) UpdateAnnouncement(ctx context.Context, cred AdminCredential, key, message string, active bool) (model.Announcement, error) {
	if _, err := s.d.Admins.Verify(cred); err != nil {
		return model.Announcement{}, s.d.failed("update announcement", err)
	}
	if key != model.AnnouncementPublic && key != model.AnnouncementAdmin {
		return model.Announcement{}, invalid("unknown announcement %q", key)
	}
	message = strings.TrimSpace(message)
	if utf8.RuneCountInString(message) > maxAnnouncement {
		return model.Announcement{}, invalid("message must be at most %d characters", maxAnnouncement)
	}
	ctx, cancel := s.d.bound(ctx)
	defer cancel()

	a := model.Announcement{Key: key, Message: message, Active: active, UpdatedAt: s.d.now()}
	if err := s.d.Settings.UpsertAnnouncement(ctx, a); err != nil {
		return model.Announcement{}, s.d.failed("update announcement", storeErr("upsert announcement", err))
	}
	bctx, bcancel := s.d.detached(ctx)
	defer bcancel()
	event, to := announcementEvent(key)
	s.d.broadcast(bctx, event, a, to)
	return a, nil
}

// Login checks admin credentials and issues a session token.
func (s *ModerationService) Login(cred AdminCredential) (LoginResult, error) {
	name, err := s.d.Admins.Verify(cred)
	if err != nil {
		return LoginResult{}, s.d.failed("admin login", err)
	}
	tok, err := s.d.Admins.IssueToken(name)
	if err != nil {
		return LoginResult{}, s.d.failed("admin login", storeErr("sign token", err))
	}
	return LoginResult{Name: name, Token: tok}, nil
}

// Authorize verifies admin credentials and returns the admin name.
func (s *ModerationService) Authorize(cred AdminCredential) (string, error) {
	name, err := s.d.Admins.Verify(cred)
	return name, s.d.failed("authorize", err)
}

// CancelledReservations returns the cancellation audit, newest first.
func (s *ModerationService) CancelledReservations(ctx context.Context, cred AdminCredential) ([]model.CancelledReservation, error) {
	if _, err := s.d.Admins.Verify(cred); err != nil {
		return nil, s.d.failed("list cancelled", err)
	}
	ctx, cancel := s.d.bound(ctx)
	defer cancel()
	list, err := s.d.Reservations.ListCancelled(ctx)
	if err != nil {
		return nil, s.d.failed("list cancelled", storeErr("list cancelled", err))
	}
	return list, nil
}

// InitialState builds the snapshot pushed to a new subscriber: the full
// reservation list, the settings and the public announcement, plus the
// admin announcement for admin subscribers.
func (s *ModerationService) InitialState(ctx context.Context, admin bool) ([]InitialEvent, error) {
	ctx, cancel := s.d.bound(ctx)
	defer cancel()

	list, err := s.d.Reservations.ListAll(ctx)
	if err != nil {
		return nil, s.d.failed("initial state", storeErr("list reservations", err))
	}
	st, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	ann, err := s.announcement(ctx, model.AnnouncementPublic)
	if err != nil {
		return nil, err
	}
	out := []InitialEvent{
		{EventInitialReservations, list},
		{EventInitialSettings, st},
		{EventInitialAnnouncement, ann},
	}
	if admin {
		adm, err := s.announcement(ctx, model.AnnouncementAdmin)
		if err != nil {
			return nil, err
		}
		out = append(out, InitialEvent{EventInitialAdminAnnouncement, adm})
	}
	return out, nil
}

// AnnounceWindow broadcasts the open/closed state of the booking window.
func (s *ModerationService) AnnounceWindow(ctx context.Context, open bool) {
	s.d.broadcast(ctx, EventBookingWindowChanged, map[string]bool{"open": open}, AudienceAll)
}
