package repository

import (
    "context"
    "regexp"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/dorm-seat-reservation/internal/model"
)

func TestSettingsRepo_GetSettings(t *testing.T) {
    db, mock := newMock(t)
    repo := NewSettingsRepo(db)
    start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

    mock.ExpectQuery(regexp.QuoteMeta("FROM admin_settings WHERE setting_key=?")).
        WithArgs(model.SettingsKey).
        WillReturnRows(sqlmock.NewRows([]string{"reservation_start_time", "reservation_end_time", "updated_at"}).
            AddRow(start, nil, start))

    s, err := repo.GetSettings(context.Background())
    require.NoError(t, err)
    require.NotNil(t, s.ReservationStartTime)
    assert.True(t, start.Equal(*s.ReservationStartTime))
    assert.Nil(t, s.ReservationEndTime)
}

func TestSettingsRepo_GetSettingsMissing(t *testing.T) {
    db, mock := newMock(t)
    repo := NewSettingsRepo(db)
    mock.ExpectQuery(regexp.QuoteMeta("FROM admin_settings")).
        WillReturnRows(sqlmock.NewRows([]string{"reservation_start_time", "reservation_end_time", "updated_at"}))

    _, err := repo.GetSettings(context.Background())
    assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettingsRepo_Upserts(t *testing.T) {
    db, mock := newMock(t)
    repo := NewSettingsRepo(db)
    now := time.Now()

    mock.ExpectExec(regexp.QuoteMeta("INSERT INTO admin_settings")).
        WithArgs(model.SettingsKey, sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec(regexp.QuoteMeta("INSERT INTO announcements")).
        WithArgs(model.AnnouncementAdmin, "floor 3 closed", true, sqlmock.AnyArg()).
        WillReturnResult(sqlmock.NewResult(0, 1))

    require.NoError(t, repo.UpsertSettings(context.Background(), model.AdminSetting{ReservationStartTime: &now, UpdatedAt: now}))
    require.NoError(t, repo.UpsertAnnouncement(context.Background(), model.Announcement{
        Key: model.AnnouncementAdmin, Message: "floor 3 closed", Active: true, UpdatedAt: now,
    }))
}

func TestSettingsRepo_GetAnnouncementMissing(t *testing.T) {
    db, mock := newMock(t)
    repo := NewSettingsRepo(db)
    mock.ExpectQuery(regexp.QuoteMeta("FROM announcements WHERE announcement_key=?")).
        WithArgs(model.AnnouncementPublic).
        WillReturnRows(sqlmock.NewRows([]string{"message", "active", "updated_at"}))

    a, err := repo.GetAnnouncement(context.Background(), model.AnnouncementPublic)
    assert.ErrorIs(t, err, ErrNotFound)
    assert.Equal(t, model.AnnouncementPublic, a.Key)
}
