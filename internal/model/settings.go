package model

import "time"

// SettingsKey is the singleton key of the reservation window settings row.
const SettingsKey = "reservation"

// Announcement singleton keys.
const (
    AnnouncementPublic = "public"
    AnnouncementAdmin  = "admin"
)

// AdminSetting is the singleton `admin_settings` row holding the booking
// window.  Nil bounds mean the window is not configured.
type AdminSetting struct {
    ReservationStartTime *time.Time `json:"reservationStartTime"`
    ReservationEndTime   *time.Time `json:"reservationEndTime"`
    UpdatedAt            time.Time  `json:"updatedAt"`
}

// Announcement is a singleton `announcements` row.  The public and the
// admin-only announcement share the table and differ by key.
type Announcement struct {
    Key       string    `json:"-"`
    Message   string    `json:"message"`
    Active    bool      `json:"active"`
    UpdatedAt time.Time `json:"updatedAt"`
}
