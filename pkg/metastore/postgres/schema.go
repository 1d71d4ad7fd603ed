// Package postgres provides a PostgreSQL-backed implementation of
// [metastore.Store].
//
// Two tables hold the data: session_records for per-session metadata and
// counters, transcript_segments for per-chunk transcript text. [Migrate]
// creates both via CREATE TABLE IF NOT EXISTS, so no external migration
// tooling is required.
//
// Usage:
//
//	store, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessionRecords = `
CREATE TABLE IF NOT EXISTS session_records (
    id                 TEXT             PRIMARY KEY,
    owner_id           TEXT             NOT NULL,
    title              TEXT             NOT NULL DEFAULT '',
    sample_rate        INTEGER          NOT NULL,
    language           TEXT             NOT NULL DEFAULT '',
    source             TEXT             NOT NULL DEFAULT '',
    status             TEXT             NOT NULL DEFAULT 'recording',
    chunks_count       INTEGER          NOT NULL DEFAULT 0,
    total_duration_sec DOUBLE PRECISION NOT NULL DEFAULT 0,
    full_transcript    TEXT,
    created_at         TIMESTAMPTZ      NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ      NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_session_records_owner_created
    ON session_records (owner_id, created_at DESC, id DESC);
`

const ddlTranscriptSegments = `
CREATE TABLE IF NOT EXISTS transcript_segments (
    session_id   TEXT             NOT NULL REFERENCES session_records (id) ON DELETE CASCADE,
    seq          INTEGER          NOT NULL,
    offset_ms    INTEGER          NOT NULL DEFAULT 0,
    duration_sec DOUBLE PRECISION NOT NULL DEFAULT 0,
    text         TEXT             NOT NULL,
    PRIMARY KEY (session_id, seq)
);
`

// Migrate ensures all tables and indexes used by the store exist.
// It is idempotent and called automatically by [New].
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{ddlSessionRecords, ddlTranscriptSegments} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("postgres metastore: migrate: %w", err)
		}
	}
	return nil
}
