package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS production_pointer (
		id           SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		run_id       TEXT NOT NULL,
		model_key    TEXT NOT NULL,
		metadata_key TEXT NOT NULL,
		metrics      JSONB NOT NULL,
		version      BIGINT NOT NULL,
		promoted_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS training_run (
		run_id       TEXT PRIMARY KEY,
		model_key    TEXT NOT NULL,
		metadata_key TEXT NOT NULL,
		rmse         DOUBLE PRECISION NOT NULL,
		mae          DOUBLE PRECISION NOT NULL,
		r2           DOUBLE PRECISION NOT NULL,
		train_rows   INTEGER NOT NULL,
		test_rows    INTEGER NOT NULL,
		promoted     BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS valuation_estimate (
		id              UUID PRIMARY KEY,
		created_at      TIMESTAMPTZ NOT NULL,
		address         TEXT NOT NULL DEFAULT '',
		neighborhood    TEXT NOT NULL,
		estimated_price DOUBLE PRECISION NOT NULL,
		price_per_sqm   DOUBLE PRECISION NOT NULL,
		model_used      TEXT NOT NULL,
		model_run_id    TEXT,
		lat             DOUBLE PRECISION,
		lon             DOUBLE PRECISION,
		features        JSONB NOT NULL,
		request         JSONB,
		request_id      TEXT
	)`,
	`ALTER TABLE valuation_estimate ADD COLUMN IF NOT EXISTS request JSONB`,
	`ALTER TABLE valuation_estimate ADD COLUMN IF NOT EXISTS request_id TEXT`,
	`CREATE INDEX IF NOT EXISTS idx_valuation_estimate_created_at ON valuation_estimate (created_at DESC)`,
}

// EnsureSchema creates the service tables when they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
