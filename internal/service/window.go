package service

import (
	"time"

	"github.com/iliyamo/dorm-seat-reservation/internal/model"
)

// IsBookingOpen reports whether now lies inside the configured window,
// bounds included.  A nil settings value or a missing bound means the
// window is closed, never unrestricted.
func IsBookingOpen(s *model.AdminSetting, now time.Time) bool {
	if s == nil || s.ReservationStartTime == nil || s.ReservationEndTime == nil {
		return false
	}
	return !now.Before(*s.ReservationStartTime) && !now.After(*s.ReservationEndTime)
}
