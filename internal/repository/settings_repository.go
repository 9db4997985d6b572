package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/iliyamo/dorm-seat-reservation/internal/model"
)

// SettingsRepo persists the keyed singleton rows: the booking window in
// admin_settings and the announcements.  Writes are upserts, so the last
// writer wins.
type SettingsRepo struct{ DB *sql.DB }

func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{DB: db} }

func nullTime(t *time.Time) sql.NullTime {
    if t == nil {
        return sql.NullTime{}
    }
    return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
    if !t.Valid {
        return nil
    }
    v := t.Time.UTC()
    return &v
}

// GetSettings returns the window settings or ErrNotFound when no row exists.
func (r *SettingsRepo) GetSettings(ctx context.Context) (model.AdminSetting, error) {
    var s model.AdminSetting
    var start, end sql.NullTime
    err := r.DB.QueryRowContext(ctx,
        "SELECT reservation_start_time, reservation_end_time, updated_at FROM admin_settings WHERE setting_key=? LIMIT 1",
        model.SettingsKey).Scan(&start, &end, &s.UpdatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return s, ErrNotFound
        }
        return s, err
    }
    s.ReservationStartTime = timePtr(start)
    s.ReservationEndTime = timePtr(end)
    s.UpdatedAt = s.UpdatedAt.UTC()
    return s, nil
}

// UpsertSettings creates or replaces the window settings row.
func (r *SettingsRepo) UpsertSettings(ctx context.Context, s model.AdminSetting) error {
    _, err := r.DB.ExecContext(ctx,
        `INSERT INTO admin_settings (setting_key, reservation_start_time, reservation_end_time, updated_at)
         VALUES (?,?,?,?)
         ON DUPLICATE KEY UPDATE reservation_start_time=VALUES(reservation_start_time),
             reservation_end_time=VALUES(reservation_end_time), updated_at=VALUES(updated_at)`,
        model.SettingsKey, nullTime(s.ReservationStartTime), nullTime(s.ReservationEndTime), s.UpdatedAt.UTC())
    return err
}

// GetAnnouncement returns the announcement stored under key or ErrNotFound.
func (r *SettingsRepo) GetAnnouncement(ctx context.Context, key string) (model.Announcement, error) {
    a := model.Announcement{Key: key}
    err := r.DB.QueryRowContext(ctx,
        "SELECT message, active, updated_at FROM announcements WHERE announcement_key=? LIMIT 1",
        key).Scan(&a.Message, &a.Active, &a.UpdatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return a, ErrNotFound
        }
        return a, err
    }
    a.UpdatedAt = a.UpdatedAt.UTC()
    return a, nil
}

// UpsertAnnouncement creates or replaces the announcement under a.Key.
func (r *SettingsRepo) UpsertAnnouncement(ctx context.Context, a model.Announcement) error {
    _, err := r.DB.ExecContext(ctx,
        `INSERT INTO announcements (announcement_key, message, active, updated_at)
         VALUES (?,?,?,?)
         ON DUPLICATE KEY UPDATE message=VALUES(message), active=VALUES(active), updated_at=VALUES(updated_at)`,
        a.Key, a.Message, a.Active, a.UpdatedAt.UTC())
    return err
}
