package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_AppliesEveryStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS reservations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS cancelled_reservations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS admin_settings`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS announcements`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_StopsOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS reservations`).WillReturnError(errors.New("access denied"))

	err = Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchema_DeclaresBothUniqueKeys(t *testing.T) {
	assert.Contains(t, schema[0], "UNIQUE KEY uq_identity (room_no, name)")
	assert.Contains(t, schema[0], "UNIQUE KEY uq_placement (dormitory, floor, seat)")
}

func TestSchema_KeyColumnsCompareExactly(t *testing.T) {
	for _, col := range []string{"room_no", "name", "dormitory", "floor"} {
		assert.Regexp(t, `\b`+col+`\s+VARCHAR\(\d+\)\s+COLLATE utf8mb4_bin NOT NULL`, schema[0], col)
	}
}
