// Package store provides the PostgreSQL persistence layer for job listings
// and the per-subscriber sent log.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool creates and verifies a pgxpool connection pool.
//
// Two pools exist at runtime: one on the read-only credential and one on the
// elevated (admin) credential. All mutating calls must go through the admin
// pool — the privilege separation is a security boundary.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the tables the pipeline needs if they don't exist.
// Run against the admin pool at startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS subscribers (
		id                            UUID PRIMARY KEY,
		email                         TEXT NOT NULL UNIQUE,
		status                        TEXT NOT NULL DEFAULT 'pending',
		confirm_token                 TEXT UNIQUE,
		confirm_token_expires_at      TIMESTAMPTZ,
		unsubscribe_token             TEXT UNIQUE,
		unsubscribe_token_expires_at  TIMESTAMPTZ,
		profile_json                  JSONB,
		search_queries                TEXT[],
		target_location               TEXT,
		min_score                     INT NOT NULL DEFAULT 70,
		expires_at                    TIMESTAMPTZ,
		created_at                    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at                    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id          UUID PRIMARY KEY,
		url         TEXT NOT NULL UNIQUE,
		title       TEXT NOT NULL,
		company     TEXT NOT NULL,
		location    TEXT,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS job_sent_log (
		subscriber_id UUID NOT NULL REFERENCES subscribers(id) ON DELETE CASCADE,
		job_id        UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		sent_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (subscriber_id, job_id)
	);`

	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
