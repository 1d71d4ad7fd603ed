package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scribed-io/scribed/pkg/metastore"
)

// Compile-time interface check.
var _ metastore.Store = (*Store)(nil)

// defaultPageSize caps ListRecords pages when the caller passes limit <= 0.
const defaultPageSize = 50

// Store is the PostgreSQL-backed [metastore.Store]. All operations share a
// single [pgxpool.Pool] and are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New establishes a connection pool to the PostgreSQL database at dsn and runs
// [Migrate] to ensure all required tables exist.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres metastore: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres metastore: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres metastore: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping reports whether the database is reachable. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateRecord implements [metastore.Store].
func (s *Store) CreateRecord(ctx context.Context, rec metastore.Record) error {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	const q = `
		INSERT INTO session_records
		    (id, owner_id, title, sample_rate, language, source, status,
		     chunks_count, total_duration_sec, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, q,
		rec.ID,
		rec.OwnerID,
		rec.Title,
		rec.SampleRate,
		rec.Language,
		rec.Source,
		rec.Status,
		rec.Stats.ChunksCount,
		rec.Stats.TotalDurationSec,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres metastore: create record: %w", err)
	}
	return nil
}

// SetStatus implements [metastore.Store].
func (s *Store) SetStatus(ctx context.Context, id, status string) error {
	const q = `
		UPDATE session_records
		SET    status = $2, updated_at = now()
		WHERE  id = $1`

	tag, err := s.pool.Exec(ctx, q, id, status)
	if err != nil {
		return fmt.Errorf("postgres metastore: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres metastore: set status %q: %w", id, metastore.ErrNotFound)
	}
	return nil
}

// UpdateStats implements [metastore.Store].
func (s *Store) UpdateStats(ctx context.Context, id string, stats metastore.Stats) error {
	const q = `
		UPDATE session_records
		SET    chunks_count = $2, total_duration_sec = $3, updated_at = now()
		WHERE  id = $1`

	tag, err := s.pool.Exec(ctx, q, id, stats.ChunksCount, stats.TotalDurationSec)
	if err != nil {
		return fmt.Errorf("postgres metastore: update stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres metastore: update stats %q: %w", id, metastore.ErrNotFound)
	}
	return nil
}

// AppendSegment implements [metastore.Store]. Re-appending an existing Seq
// replaces the stored text.
func (s *Store) AppendSegment(ctx context.Context, id string, seg metastore.Segment) error {
	// Bumping updated_at first doubles as the existence check, so the
	// segment upsert can rely on the foreign key being satisfied.
	const touch = `
		UPDATE session_records
		SET    updated_at = now()
		WHERE  id = $1`

	tag, err := s.pool.Exec(ctx, touch, id)
	if err != nil {
		return fmt.Errorf("postgres metastore: append segment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres metastore: append segment %q: %w", id, metastore.ErrNotFound)
	}

	const q = `
		INSERT INTO transcript_segments (session_id, seq, offset_ms, duration_sec, text)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, seq) DO UPDATE
		SET offset_ms = EXCLUDED.offset_ms,
		    duration_sec = EXCLUDED.duration_sec,
		    text = EXCLUDED.text`

	if _, err := s.pool.Exec(ctx, q, id, seg.Seq, seg.OffsetMs, seg.DurationSec, seg.Text); err != nil {
		return fmt.Errorf("postgres metastore: append segment: %w", err)
	}
	return nil
}

// SetFullTranscript implements [metastore.Store].
func (s *Store) SetFullTranscript(ctx context.Context, id, text string) error {
	const q = `
		UPDATE session_records
		SET    full_transcript = $2, updated_at = now()
		WHERE  id = $1`

	tag, err := s.pool.Exec(ctx, q, id, text)
	if err != nil {
		return fmt.Errorf("postgres metastore: set full transcript: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres metastore: set full transcript %q: %w", id, metastore.ErrNotFound)
	}
	return nil
}

// GetFullTranscript implements [metastore.Store].
func (s *Store) GetFullTranscript(ctx context.Context, id string) (string, bool, error) {
	const q = `SELECT full_transcript FROM session_records WHERE id = $1`

	var text *string
	err := s.pool.QueryRow(ctx, q, id).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("postgres metastore: get full transcript %q: %w", id, metastore.ErrNotFound)
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres metastore: get full transcript: %w", err)
	}
	if text == nil {
		return "", false, nil
	}
	return *text, true, nil
}

// GetRecord implements [metastore.Store].
func (s *Store) GetRecord(ctx context.Context, id string) (metastore.Record, error) {
	const q = selectRecordColumns + ` WHERE id = $1`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return metastore.Record{}, fmt.Errorf("postgres metastore: get record: %w", err)
	}
	rec, err := pgx.CollectOneRow(rows, scanRecord)
	if errors.Is(err, pgx.ErrNoRows) {
		return metastore.Record{}, fmt.Errorf("postgres metastore: get record %q: %w", id, metastore.ErrNotFound)
	}
	if err != nil {
		return metastore.Record{}, fmt.Errorf("postgres metastore: get record: %w", err)
	}
	return rec, nil
}

// ListRecords implements [metastore.Store] using keyset pagination over
// (created_at, id). The cursor is the ID of the last record of the previous
// page; a cursor referencing a since-deleted record restarts from the first
// page, which is within the interface's best-effort contract.
func (s *Store) ListRecords(ctx context.Context, ownerID, cursor string, limit int) ([]metastore.Record, string, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	q := selectRecordColumns + `
		WHERE  owner_id = $1`
	args := []any{ownerID}

	if cursor != "" {
		q += `
		  AND  (created_at, id) < (SELECT created_at, id FROM session_records WHERE id = $2)`
		args = append(args, cursor)
	}

	args = append(args, limit)
	q += fmt.Sprintf(`
		ORDER  BY created_at DESC, id DESC
		LIMIT  $%d`, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, "", fmt.Errorf("postgres metastore: list records: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, "", fmt.Errorf("postgres metastore: list records: %w", err)
	}

	next := ""
	if len(recs) == limit {
		next = recs[len(recs)-1].ID
	}
	return recs, next, nil
}

const selectRecordColumns = `
		SELECT id, owner_id, title, sample_rate, language, source, status,
		       chunks_count, total_duration_sec, created_at, updated_at
		FROM   session_records`

// scanRecord scans one session_records row into a Record.
func scanRecord(row pgx.CollectableRow) (metastore.Record, error) {
	var rec metastore.Record
	err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.Title,
		&rec.SampleRate,
		&rec.Language,
		&rec.Source,
		&rec.Status,
		&rec.Stats.ChunksCount,
		&rec.Stats.TotalDurationSec,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	return rec, err
}
