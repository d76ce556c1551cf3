// Package postgres owns the database handle and schema for the ledger.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects via the pgx stdlib driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// migrations are applied in order at startup. Statements are idempotent so a
// restart or a second replica racing through them is harmless.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS charities (
		id             UUID PRIMARY KEY,
		name           TEXT NOT NULL,
		wallet_address TEXT NOT NULL DEFAULT '',
		total_received BIGINT NOT NULL DEFAULT 0 CHECK (total_received >= 0),
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS donations (
		id              UUID PRIMARY KEY,
		correlation_key TEXT UNIQUE,
		donor_id        UUID,
		charity_id      UUID NOT NULL REFERENCES charities(id),
		amount          BIGINT NOT NULL CHECK (amount > 0),
		origin          TEXT NOT NULL,
		message         TEXT NOT NULL DEFAULT '',
		anonymous       BOOLEAN NOT NULL DEFAULT FALSE,
		status          TEXT NOT NULL,
		subscription_id UUID,
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_donations_charity_created
		ON donations (charity_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id          UUID PRIMARY KEY,
		donor_id    UUID NOT NULL,
		charity_id  UUID NOT NULL REFERENCES charities(id),
		amount      BIGINT NOT NULL CHECK (amount > 0),
		frequency   TEXT NOT NULL,
		origin      TEXT NOT NULL,
		anonymous   BOOLEAN NOT NULL DEFAULT FALSE,
		message     TEXT NOT NULL DEFAULT '',
		wallet_ref  TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL,
		last_billed TIMESTAMPTZ,
		next_due    TIMESTAMPTZ NOT NULL,
		cycle_seq   BIGINT NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_due
		ON subscriptions (next_due) WHERE status = 'active'`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_donor
		ON subscriptions (donor_id, created_at DESC)`,
}

// Migrate applies the ledger schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}
