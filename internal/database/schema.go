package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables used by the repositories.  Statements are
// idempotent so Migrate can run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		phone VARCHAR(20) NOT NULL,
		email VARCHAR(255) NULL,
		national_id_hash VARCHAR(255) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_customers_phone (phone)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id VARCHAR(16) PRIMARY KEY,
		trip_id VARCHAR(32) NOT NULL,
		customer_id BIGINT UNSIGNED NOT NULL,
		session_id VARCHAR(64) NOT NULL,
		total_price BIGINT NOT NULL,
		status ENUM('confirmed','cancelled') NOT NULL DEFAULT 'confirmed',
		created_at DATETIME NOT NULL,
		KEY idx_bookings_trip (trip_id),
		CONSTRAINT fk_bookings_customer FOREIGN KEY (customer_id) REFERENCES customers(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS booking_seats (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		booking_id VARCHAR(16) NOT NULL,
		trip_id VARCHAR(32) NOT NULL,
		seat_id VARCHAR(16) NOT NULL,
		UNIQUE KEY uq_booking_seats_trip_seat (trip_id, seat_id),
		CONSTRAINT fk_booking_seats_booking FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS booking_files (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		booking_id VARCHAR(16) NOT NULL,
		filename VARCHAR(255) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_booking_files_booking FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS trip_seats (
		trip_id VARCHAR(32) NOT NULL,
		seat_id VARCHAR(16) NOT NULL,
		status ENUM('held','booked') NOT NULL,
		held_by VARCHAR(64) NOT NULL DEFAULT '',
		held_at DATETIME NULL,
		booking_id VARCHAR(16) NULL,
		version BIGINT NOT NULL,
		PRIMARY KEY (trip_id, seat_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing table.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
