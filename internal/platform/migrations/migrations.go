// Package migrations holds the database schema as ordered idempotent
// statements applied at startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		mobile TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		age INTEGER NOT NULL DEFAULT 0,
		government_id TEXT NOT NULL DEFAULT '',
		government_id_type TEXT NOT NULL DEFAULT '',
		date_of_birth TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_government_id_idx
		ON users (government_id) WHERE government_id <> ''`,
	`CREATE TABLE IF NOT EXISTS lands (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		area DOUBLE PRECISION NOT NULL DEFAULT 0,
		area_unit TEXT NOT NULL DEFAULT '',
		monthly_rent DOUBLE PRECISION NOT NULL DEFAULT 0,
		soil_type TEXT NOT NULL DEFAULT '',
		water_source TEXT NOT NULL DEFAULT '',
		available_from TEXT NOT NULL DEFAULT '',
		available_to TEXT NOT NULL DEFAULT '',
		coordinates JSONB NOT NULL DEFAULT '[]',
		photo_keys JSONB NOT NULL DEFAULT '[]',
		available BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS lands_owner_idx ON lands (owner_id)`,
	`CREATE TABLE IF NOT EXISTS interests (
		id TEXT PRIMARY KEY,
		land_id TEXT NOT NULL REFERENCES lands(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		monthly_budget DOUBLE PRECISION NOT NULL DEFAULT 0,
		rent_period_months INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (land_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS leases (
		id TEXT PRIMARY KEY,
		land_id TEXT NOT NULL REFERENCES lands(id),
		buyer_id TEXT NOT NULL REFERENCES users(id),
		seller_id TEXT NOT NULL REFERENCES users(id),
		deposit DOUBLE PRECISION NOT NULL DEFAULT 0,
		monthly_due DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_months INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		seller_approved BOOLEAN NOT NULL DEFAULT FALSE,
		buyer_approved BOOLEAN NOT NULL DEFAULT FALSE,
		start_date TEXT NOT NULL DEFAULT '',
		end_date TEXT NOT NULL DEFAULT '',
		payments JSONB NOT NULL DEFAULT '[]',
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS leases_land_idx ON leases (land_id)`,
}

// Apply runs every schema statement in order. Statements are idempotent so
// Apply is safe on every startup.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
