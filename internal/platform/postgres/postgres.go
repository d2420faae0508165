// Package postgres owns the database handle lifecycle: opened once at
// process start, passed to stores explicitly, closed at shutdown. No
// package-level connection state.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// EnsureSchema creates the engine's tables when they do not exist.
// Documents are keyed by their business identifier so they survive a
// storage-engine migration unchanged.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tickets (
		ticket_id                 TEXT PRIMARY KEY,
		dda_id                    TEXT NOT NULL DEFAULT '',
		description               TEXT NOT NULL DEFAULT '',
		fqdn                      TEXT[] NOT NULL DEFAULT '{}',
		ipv4                      TEXT[] NOT NULL DEFAULT '{}',
		ipv6                      TEXT[] NOT NULL DEFAULT '{}',
		assigned_to               TEXT[] NOT NULL,
		status                    TEXT NOT NULL,
		revoke_time_seconds       BIGINT NOT NULL,
		autoclose_time_seconds    BIGINT NOT NULL,
		report_error_time_seconds BIGINT NOT NULL,
		tasks                     TEXT[] NOT NULL DEFAULT '{}',
		created_by                TEXT NOT NULL,
		created_at                TIMESTAMPTZ NOT NULL,
		updated_at                TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS tickets_dda_id_key
		ON tickets (dda_id) WHERE dda_id <> ''`,
	`CREATE TABLE IF NOT EXISTS ticket_items (
		ticket_item_id     TEXT PRIMARY KEY,
		ticket_id          TEXT NOT NULL,
		value              TEXT NOT NULL,
		genre              TEXT NOT NULL,
		provider_id        TEXT NOT NULL,
		status             TEXT NOT NULL,
		reason             TEXT NOT NULL DEFAULT '',
		is_duplicate       BOOLEAN NOT NULL DEFAULT FALSE,
		is_whitelisted     BOOLEAN NOT NULL DEFAULT FALSE,
		is_error           BOOLEAN NOT NULL DEFAULT FALSE,
		is_active          BOOLEAN NOT NULL DEFAULT TRUE,
		provider_timestamp TIMESTAMPTZ,
		note               TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL,
		updated_at         TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ticket_items_ticket_idx
		ON ticket_items (ticket_id)`,
	`CREATE INDEX IF NOT EXISTS ticket_items_genre_value_idx
		ON ticket_items (genre, value)`,
	`CREATE INDEX IF NOT EXISTS ticket_items_provider_value_idx
		ON ticket_items (provider_id, value)`,
	`CREATE TABLE IF NOT EXISTS whitelist_entries (
		value      TEXT PRIMARY KEY,
		genre      TEXT NOT NULL,
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		created_by TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ticket_errors (
		ticket_error_id TEXT PRIMARY KEY,
		ticket_id       TEXT NOT NULL,
		fqdn            TEXT[] NOT NULL DEFAULT '{}',
		ipv4            TEXT[] NOT NULL DEFAULT '{}',
		ipv6            TEXT[] NOT NULL DEFAULT '{}',
		created_by      TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ticket_errors_ticket_idx
		ON ticket_errors (ticket_id)`,
}
