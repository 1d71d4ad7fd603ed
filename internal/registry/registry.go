// Package registry is the in-process source of truth for active recording
// sessions: existence, ownership, status, and per-chunk metadata.
//
// The registry map is guarded by its own lock while each session carries a
// private mutex, so chunk ingestion for different sessions proceeds
// concurrently. Aggregate figures (chunk count, total duration) are always
// derived from the chunk collection at call time; there is no separately
// maintained counter that could drift.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no session exists under the given id.
	ErrNotFound = errors.New("registry: session not found")

	// ErrForbidden is returned when a session exists but belongs to a
	// different owner.
	ErrForbidden = errors.New("registry: session owned by another user")

	// ErrStatusRegression indicates an attempted backward status transition.
	// This is a programming error in the caller, not a user-facing condition.
	ErrStatusRegression = errors.New("registry: backward status transition")
)

// maxIDAttempts bounds id-generation retries on the (astronomically unlikely)
// collision of a fresh session id.
const maxIDAttempts = 5

// Status is the lifecycle phase of a session. Transitions are monotonic:
// recording → processing → done, never backwards.
type Status string

const (
	StatusRecording  Status = "recording"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
)

// IsValid reports whether s is a recognised status.
func (s Status) IsValid() bool {
	switch s {
	case StatusRecording, StatusProcessing, StatusDone:
		return true
	}
	return false
}

// rank orders statuses along the lifecycle for the monotonicity check.
func (s Status) rank() int {
	switch s {
	case StatusRecording:
		return 0
	case StatusProcessing:
		return 1
	case StatusDone:
		return 2
	}
	return -1
}

// ChunkMeta describes one ingested audio chunk. Seq is the caller-supplied
// sort key; it is not required to be contiguous.
type ChunkMeta struct {
	Seq         int
	OffsetMs    int
	DurationSec float64

	// Path is the chunk store handle for the staged bytes.
	Path string
}

// Attrs are the descriptive session attributes fixed at creation.
type Attrs struct {
	Title      string
	SampleRate int
	Language   string
	Source     string
}

// Session is one recording session. Identity and descriptive attributes are
// immutable after creation; status and the chunk collection are mutated
// through the owning [Registry] only.
type Session struct {
	ID         string
	Owner      string
	Title      string
	SampleRate int
	Language   string
	Source     string
	CreatedAt  time.Time

	mu     sync.Mutex
	status Status
	chunks map[int]ChunkMeta
}

// Status returns the session's current lifecycle phase.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ChunksCount returns the number of distinct chunk sequence numbers ingested.
func (s *Session) ChunksCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// TotalDurationSec returns the sum of per-chunk durations.
func (s *Session) TotalDurationSec() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, c := range s.chunks {
		total += c.DurationSec
	}
	return total
}

// OrderedChunks returns a snapshot of all chunk metadata sorted by ascending
// sequence number.
func (s *Session) OrderedChunks() []ChunkMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChunkMeta, 0, len(s.chunks))
	for _, seq := range slices.Sorted(maps.Keys(s.chunks)) {
		out = append(out, s.chunks[seq])
	}
	return out
}

// Registry holds every active session for the process lifetime. Create one at
// startup and inject it into each connection handler; all methods are safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create inserts a new session with status recording under a freshly
// generated id and returns it.
func (r *Registry) Create(owner string, attrs Attrs) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for range maxIDAttempts {
		id := newSessionID()
		if _, exists := r.sessions[id]; exists {
			continue
		}
		s := &Session{
			ID:         id,
			Owner:      owner,
			Title:      attrs.Title,
			SampleRate: attrs.SampleRate,
			Language:   attrs.Language,
			Source:     attrs.Source,
			CreatedAt:  time.Now().UTC(),
			status:     StatusRecording,
			chunks:     make(map[int]ChunkMeta),
		}
		r.sessions[id] = s
		return s, nil
	}
	return nil, fmt.Errorf("registry: could not generate a unique session id after %d attempts", maxIDAttempts)
}

// Get returns the session with the given id, or [ErrNotFound].
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// GetOwned returns the session with the given id if it belongs to owner.
// A missing session yields [ErrNotFound]; an existing session with a
// different owner yields [ErrForbidden].
func (r *Registry) GetOwned(id, owner string) (*Session, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if s.Owner != owner {
		return nil, ErrForbidden
	}
	return s, nil
}

// UpsertChunk records metadata for one chunk, replacing any existing entry at
// the same sequence number.
func (r *Registry) UpsertChunk(id string, meta ChunkMeta) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.chunks[meta.Seq] = meta
	s.mu.Unlock()
	return nil
}

// SetStatus advances the session's status. The transition must be forward
// along recording → processing → done; setting the current status again is a
// no-op. A backward transition returns [ErrStatusRegression].
func (r *Registry) SetStatus(id string, next Status) error {
	if !next.IsValid() {
		return fmt.Errorf("registry: invalid status %q", next)
	}
	s, err := r.Get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if next.rank() < s.status.rank() {
		slog.Error("attempted backward session status transition",
			"session_id", id, "from", s.status, "to", next)
		return fmt.Errorf("%w: %s → %s", ErrStatusRegression, s.status, next)
	}
	s.status = next
	return nil
}

// newSessionID generates a short session id of the form "sess_3f2a9c01".
func newSessionID() string {
	u := uuid.New()
	return fmt.Sprintf("sess_%x", u[:4])
}
