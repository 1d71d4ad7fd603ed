// Package chunkstore stages raw audio chunk bytes on local disk, addressable
// by (session id, sequence number), and produces one ordered concatenation
// per session on demand.
//
// The store is scratch space for the lifetime of a session's processing: no
// durability across restarts is promised, but staged bytes stay readable
// until process shutdown; nothing is evicted mid-session.
package chunkstore

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/scribed-io/scribed/pkg/audio"
)

// ErrNoChunks is returned by [Store.Concat] when the session has no staged
// chunks.
var ErrNoChunks = errors.New("chunkstore: no chunks to concatenate")

// chunkRef is the store's record of one staged chunk file.
type chunkRef struct {
	path string
	mime string
}

// Store stages chunk bytes under a root directory, one subdirectory per
// session. Safe for concurrent use; writes for different sessions do not
// serialise on file I/O.
type Store struct {
	root string

	mu    sync.Mutex
	index map[string]map[int]chunkRef
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("chunkstore: root directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("chunkstore: create root %q: %w", dir, err)
	}
	return &Store{
		root:  dir,
		index: make(map[string]map[int]chunkRef),
	}, nil
}

// Put writes the chunk bytes to disk keyed by (sessionID, seq) and returns
// the file path as the stable handle. A repeated seq overwrites the previous
// bytes, last write wins.
func (s *Store) Put(sessionID string, seq int, mime string, data []byte) (string, error) {
	dir := filepath.Join(s.root, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("chunkstore: create session dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%06d%s", seq, mimeExt(mime)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("chunkstore: write chunk %d: %w", seq, err)
	}

	s.mu.Lock()
	refs, ok := s.index[sessionID]
	if !ok {
		refs = make(map[int]chunkRef)
		s.index[sessionID] = refs
	}
	refs[seq] = chunkRef{path: path, mime: mime}
	s.mu.Unlock()

	return path, nil
}

// Concat joins all staged chunks for the session in ascending sequence order
// into a single mono WAV file at targetRate and returns its path.
//
// Gaps in the sequence are tolerated: a missing seq simply contributes
// nothing. This is a deliberate latency/simplicity trade-off: it can mask
// chunks dropped upstream, so the caller's aggregate stats are the place to
// notice a mismatch, not this method.
func (s *Store) Concat(sessionID string, targetRate int) (string, error) {
	if targetRate <= 0 {
		return "", fmt.Errorf("chunkstore: invalid target rate %d", targetRate)
	}

	s.mu.Lock()
	refs := s.index[sessionID]
	ordered := make([]chunkRef, 0, len(refs))
	for _, seq := range slices.Sorted(maps.Keys(refs)) {
		ordered = append(ordered, refs[seq])
	}
	s.mu.Unlock()

	if len(ordered) == 0 {
		return "", ErrNoChunks
	}

	var combined []int16
	for _, ref := range ordered {
		samples, err := s.decodeChunk(ref, targetRate)
		if err != nil {
			return "", err
		}
		combined = append(combined, samples...)
	}

	data, err := audio.EncodeWAV(combined, targetRate)
	if err != nil {
		return "", fmt.Errorf("chunkstore: encode combined audio: %w", err)
	}

	out := filepath.Join(s.root, sessionID, "full.wav")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", fmt.Errorf("chunkstore: write combined audio: %w", err)
	}
	return out, nil
}

// decodeChunk reads one staged chunk and returns its samples as mono PCM at
// targetRate. WAV payloads are decoded properly; anything else is treated as
// raw 16-bit mono PCM already at the target rate.
func (s *Store) decodeChunk(ref chunkRef, targetRate int) ([]int16, error) {
	data, err := os.ReadFile(ref.path)
	if err != nil {
		return nil, fmt.Errorf("chunkstore: read chunk %q: %w", ref.path, err)
	}

	samples, rate, channels, err := audio.DecodeWAV(data)
	switch {
	case err == nil:
		samples = audio.Downmix(samples, channels)
		samples = audio.Resample(samples, rate, targetRate)
		return samples, nil

	case errors.Is(err, audio.ErrNotWAV):
		// Container formats we do not demux (ogg, m4a) and raw PCM both land
		// here; interpret the bytes as PCM16 mono at the session rate.
		slog.Debug("chunk is not WAV, treating as raw PCM",
			"path", ref.path, "mime", ref.mime)
		return audio.BytesToSamples(data), nil

	default:
		return nil, fmt.Errorf("chunkstore: decode chunk %q: %w", ref.path, err)
	}
}

// mimeExt maps a declared MIME type to a file extension. Unknown types
// default to .wav, matching what clients overwhelmingly send.
func mimeExt(mime string) string {
	switch mime {
	case "audio/ogg":
		return ".ogg"
	case "audio/m4a", "audio/mp4":
		return ".m4a"
	case "audio/pcm":
		return ".pcm"
	default:
		return ".wav"
	}
}
