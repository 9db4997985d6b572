package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables the repositories expect.  The two unique keys on
// reservations are what the admission logic relies on to settle races, and
// their names are matched by the repository when translating duplicate-key
// errors.  Key columns compare byte-exactly, like the in-memory store.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS reservations (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		room_no       VARCHAR(32)  COLLATE utf8mb4_bin NOT NULL,
		name          VARCHAR(64)  COLLATE utf8mb4_bin NOT NULL,
		dormitory     VARCHAR(32)  COLLATE utf8mb4_bin NOT NULL,
		floor         VARCHAR(16)  COLLATE utf8mb4_bin NOT NULL,
		seat          INT          NOT NULL,
		password_hash VARCHAR(100) NOT NULL,
		device_id     VARCHAR(128) NULL,
		created_at    DATETIME(3)  NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_identity (room_no, name),
		UNIQUE KEY uq_placement (dormitory, floor, seat)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS cancelled_reservations (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		reservation_id BIGINT UNSIGNED NOT NULL,
		room_no        VARCHAR(32)  NOT NULL,
		name           VARCHAR(64)  NOT NULL,
		dormitory      VARCHAR(32)  NOT NULL,
		floor          VARCHAR(16)  NOT NULL,
		seat           INT          NOT NULL,
		device_id      VARCHAR(128) NULL,
		created_at     DATETIME(3)  NOT NULL,
		cancelled_at   DATETIME(3)  NOT NULL,
		cancelled_by   VARCHAR(16)  NOT NULL,
		PRIMARY KEY (id),
		KEY idx_cancelled_at (cancelled_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS admin_settings (
		setting_key            VARCHAR(32) NOT NULL,
		reservation_start_time DATETIME(3) NULL,
		reservation_end_time   DATETIME(3) NULL,
		updated_at             DATETIME(3) NOT NULL,
		PRIMARY KEY (setting_key)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS announcements (
		announcement_key VARCHAR(32) NOT NULL,
		message          TEXT        NOT NULL,
		active           BOOLEAN     NOT NULL DEFAULT FALSE,
		updated_at       DATETIME(3) NOT NULL,
		PRIMARY KEY (announcement_key)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema.  Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
