package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates every table the service needs. Statements are idempotent
// and applied in order; foreign keys cascade from DJs down to bookings,
// while deleting a session only clears bookings.session_id.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS djs (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		full_name VARCHAR(100) NOT NULL,
		stage_name VARCHAR(100) NOT NULL,
		email VARCHAR(120) NOT NULL,
		phone VARCHAR(20) NULL,
		password_hash VARCHAR(255) NOT NULL,
		qr_code_id VARCHAR(64) NOT NULL,
		max_bookings_per_user INT NOT NULL DEFAULT 999,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_djs_email (email),
		UNIQUE KEY uq_djs_qr_code (qr_code_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS venues (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		dj_id BIGINT UNSIGNED NOT NULL,
		name VARCHAR(100) NOT NULL,
		address VARCHAR(255) NULL,
		capacity INT NULL,
		notes TEXT NULL,
		active BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_venues_dj_active (dj_id, active),
		CONSTRAINT fk_venues_dj FOREIGN KEY (dj_id) REFERENCES djs (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS songs (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		dj_id BIGINT UNSIGNED NOT NULL,
		file_name VARCHAR(300) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_songs_dj_file (dj_id, file_name),
		CONSTRAINT fk_songs_dj FOREIGN KEY (dj_id) REFERENCES djs (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id CHAR(36) NOT NULL PRIMARY KEY,
		dj_id BIGINT UNSIGNED NOT NULL,
		venue_id BIGINT UNSIGNED NOT NULL,
		created_at DATETIME(6) NOT NULL,
		expires_at DATETIME(6) NOT NULL,
		last_activity DATETIME(6) NOT NULL,
		user_agent TEXT NULL,
		ip_address VARCHAR(45) NULL,
		booking_count INT NOT NULL DEFAULT 0,
		KEY idx_sessions_expires (expires_at),
		CONSTRAINT fk_sessions_dj FOREIGN KEY (dj_id) REFERENCES djs (id) ON DELETE CASCADE,
		CONSTRAINT fk_sessions_venue FOREIGN KEY (venue_id) REFERENCES venues (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_name VARCHAR(100) NOT NULL,
		song VARCHAR(300) NOT NULL,
		song_key VARCHAR(10) NOT NULL DEFAULT '0',
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		venue_id BIGINT UNSIGNED NOT NULL,
		session_id CHAR(36) NULL,
		created_at DATETIME(6) NOT NULL,
		KEY idx_bookings_venue_created (venue_id, created_at),
		KEY idx_bookings_session (session_id),
		CONSTRAINT fk_bookings_venue FOREIGN KEY (venue_id) REFERENCES venues (id) ON DELETE CASCADE,
		CONSTRAINT fk_bookings_session FOREIGN KEY (session_id) REFERENCES sessions (id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		dj_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_tokens_hash (token_hash),
		CONSTRAINT fk_refresh_tokens_dj FOREIGN KEY (dj_id) REFERENCES djs (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
