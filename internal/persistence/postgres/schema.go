package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied at startup; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS bars (
		id BIGSERIAL PRIMARY KEY,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		start_utc TIMESTAMPTZ NOT NULL,
		end_utc TIMESTAMPTZ NOT NULL,
		o DOUBLE PRECISION NOT NULL,
		h DOUBLE PRECISION NOT NULL,
		l DOUBLE PRECISION NOT NULL,
		c DOUBLE PRECISION NOT NULL,
		v DOUBLE PRECISION NOT NULL,
		UNIQUE (symbol, timeframe, start_utc)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bars_lookup ON bars (symbol, timeframe, start_utc)`,
	`CREATE TABLE IF NOT EXISTS classified_bars (
		bar_id BIGINT NOT NULL REFERENCES bars(id),
		type TEXT NOT NULL,
		previous_bar_id BIGINT REFERENCES bars(id),
		PRIMARY KEY (bar_id)
	)`,
	`CREATE TABLE IF NOT EXISTS patterns (
		id BIGSERIAL PRIMARY KEY,
		symbol TEXT NOT NULL,
		pattern_type TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		completion_bar_start_utc TIMESTAMPTZ NOT NULL,
		direction TEXT NOT NULL,
		entry DOUBLE PRECISION NOT NULL,
		stop DOUBLE PRECISION NOT NULL,
		target DOUBLE PRECISION NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		meta_json JSONB
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id UUID PRIMARY KEY,
		pattern_id BIGINT REFERENCES patterns(id),
		symbol TEXT NOT NULL,
		pattern_type TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		alert_ts_utc TIMESTAMPTZ NOT NULL,
		payload_json JSONB,
		dedup_key TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS job_runs (
		id UUID PRIMARY KEY,
		job_type TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		symbols_scanned INT NOT NULL DEFAULT 0,
		patterns_found INT NOT NULL DEFAULT 0,
		alerts_sent INT NOT NULL DEFAULT 0,
		errors_json JSONB,
		status TEXT NOT NULL
	)`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
