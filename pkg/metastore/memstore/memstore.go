// Package memstore provides an in-memory [metastore.Store] backed by maps and
// a mutex. It is used by tests and by deployments that run without a
// database; nothing survives a process restart.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/scribed-io/scribed/pkg/metastore"
)

// Compile-time interface check.
var _ metastore.Store = (*Store)(nil)

const defaultPageSize = 50

type record struct {
	rec        metastore.Record
	segments   map[int]metastore.Segment
	transcript string
	hasFull    bool
}

// Store is the in-memory [metastore.Store]. The zero value is not usable;
// construct with [New]. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{records: make(map[string]*record)}
}

// Close implements [metastore.Store]. It is a no-op.
func (s *Store) Close() error { return nil }

// CreateRecord implements [metastore.Store].
func (s *Store) CreateRecord(_ context.Context, rec metastore.Record) error {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("memstore: create record: duplicate id %q", rec.ID)
	}
	s.records[rec.ID] = &record{
		rec:      rec,
		segments: make(map[int]metastore.Segment),
	}
	return nil
}

// SetStatus implements [metastore.Store].
func (s *Store) SetStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("memstore: set status %q: %w", id, metastore.ErrNotFound)
	}
	r.rec.Status = status
	r.rec.UpdatedAt = time.Now()
	return nil
}

// UpdateStats implements [metastore.Store].
func (s *Store) UpdateStats(_ context.Context, id string, stats metastore.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("memstore: update stats %q: %w", id, metastore.ErrNotFound)
	}
	r.rec.Stats = stats
	r.rec.UpdatedAt = time.Now()
	return nil
}

// AppendSegment implements [metastore.Store]. Re-appending an existing Seq
// replaces the stored segment.
func (s *Store) AppendSegment(_ context.Context, id string, seg metastore.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("memstore: append segment %q: %w", id, metastore.ErrNotFound)
	}
	r.segments[seg.Seq] = seg
	r.rec.UpdatedAt = time.Now()
	return nil
}

// SetFullTranscript implements [metastore.Store].
func (s *Store) SetFullTranscript(_ context.Context, id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("memstore: set full transcript %q: %w", id, metastore.ErrNotFound)
	}
	r.transcript = text
	r.hasFull = true
	r.rec.UpdatedAt = time.Now()
	return nil
}

// GetFullTranscript implements [metastore.Store].
func (s *Store) GetFullTranscript(_ context.Context, id string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return "", false, fmt.Errorf("memstore: get full transcript %q: %w", id, metastore.ErrNotFound)
	}
	return r.transcript, r.hasFull, nil
}

// GetRecord implements [metastore.Store].
func (s *Store) GetRecord(_ context.Context, id string) (metastore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return metastore.Record{}, fmt.Errorf("memstore: get record %q: %w", id, metastore.ErrNotFound)
	}
	return r.rec, nil
}

// ListRecords implements [metastore.Store]. Records are ordered newest first
// with the record ID as tiebreaker, mirroring the keyset ordering of the
// PostgreSQL store.
func (s *Store) ListRecords(_ context.Context, ownerID, cursor string, limit int) ([]metastore.Record, string, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	s.mu.RLock()
	owned := make([]metastore.Record, 0, len(s.records))
	for _, r := range s.records {
		if r.rec.OwnerID == ownerID {
			owned = append(owned, r.rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].CreatedAt.After(owned[j].CreatedAt)
		}
		return owned[i].ID > owned[j].ID
	})

	start := 0
	if cursor != "" {
		for i, rec := range owned {
			if rec.ID == cursor {
				start = i + 1
				break
			}
		}
	}

	end := start + limit
	if end > len(owned) {
		end = len(owned)
	}
	page := owned[start:end]

	next := ""
	if len(page) == limit && end < len(owned) {
		next = page[len(page)-1].ID
	}
	return page, next, nil
}
