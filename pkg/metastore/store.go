// Package metastore defines the durable metadata layer for transcription
// sessions. While the in-process registry owns the live protocol state of a
// connected client, the metastore is the system of record that survives
// restarts: session attributes, lifecycle status, per-chunk transcript
// segments and the final assembled transcript.
//
// Two implementations ship with scribed:
//
//   - postgres: a PostgreSQL-backed store suited for production deployments.
//   - memstore: a mutex-guarded in-memory store for tests and single-node
//     runs without a database.
//
// Every implementation must be safe for concurrent use.
package metastore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by operations that reference a record ID the store
// has never seen.
var ErrNotFound = errors.New("metastore: record not found")

// Record is the durable view of a transcription session.
type Record struct {
	// ID is the session identifier, assigned at creation (e.g. "sess_a1b2c3d4").
	ID string

	// OwnerID identifies the authenticated principal that created the session.
	// Only the owner may read or mutate the record.
	OwnerID string

	// Title is the client-supplied display name. May be empty.
	Title string

	// SampleRate is the target sample rate in Hz for the assembled audio.
	SampleRate int

	// Language is the expected spoken language (BCP-47 tag or engine keyword).
	Language string

	// Source describes where the audio originates ("mic", "upload", ...).
	Source string

	// Status is the lifecycle state: "recording", "processing" or "done".
	Status string

	// Stats holds derived counters, updated on every chunk ingest.
	Stats Stats

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats holds the derived per-session counters exposed to clients.
type Stats struct {
	// ChunksCount is the number of distinct chunk sequence numbers ingested.
	ChunksCount int `json:"chunksCount"`

	// TotalDurationSec is the summed duration of all ingested chunks.
	TotalDurationSec float64 `json:"totalDurationSec"`
}

// Segment is the transcript of a single audio chunk, recorded as chunks are
// transcribed so that a partial transcript exists even if the session never
// completes.
type Segment struct {
	// Seq is the chunk sequence number this segment was produced from.
	Seq int

	// OffsetMs is the client-reported start offset of the chunk, if any.
	OffsetMs int

	// DurationSec is the client-reported chunk duration, if any.
	DurationSec float64

	// Text is the transcribed text for the chunk.
	Text string
}

// Store persists session metadata and transcripts.
//
// All mutating operations bump the record's UpdatedAt timestamp. Operations
// referencing an unknown record ID return an error wrapping [ErrNotFound].
type Store interface {
	// CreateRecord inserts a new session record. CreatedAt and UpdatedAt are
	// set by the store if zero.
	CreateRecord(ctx context.Context, rec Record) error

	// SetStatus updates the lifecycle status of the record.
	// Status ordering is enforced by the caller, not the store.
	SetStatus(ctx context.Context, id, status string) error

	// UpdateStats replaces the derived counters for the record.
	UpdateStats(ctx context.Context, id string, stats Stats) error

	// AppendSegment records the transcript of a single chunk. Appending the
	// same Seq twice replaces the earlier text (last write wins, matching
	// chunk ingest semantics).
	AppendSegment(ctx context.Context, id string, seg Segment) error

	// SetFullTranscript stores the final assembled transcript text.
	SetFullTranscript(ctx context.Context, id, text string) error

	// GetFullTranscript returns the final transcript for the record.
	// found is false when the record exists but no full transcript has been
	// stored yet.
	GetFullTranscript(ctx context.Context, id string) (text string, found bool, err error)

	// GetRecord returns the full record for id.
	GetRecord(ctx context.Context, id string) (Record, error)

	// ListRecords returns the owner's records, newest first. cursor is an
	// opaque token from a previous call ("" for the first page); limit caps
	// the page size (0 means a store-chosen default). nextCursor is "" when
	// no further pages exist. Pagination is best effort: records created or
	// deleted between pages may be skipped or repeated at page boundaries.
	ListRecords(ctx context.Context, ownerID, cursor string, limit int) (recs []Record, nextCursor string, err error)

	// Close releases any resources held by the store.
	Close() error
}
