package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestCreate_AssignsIDAndDefaults(t *testing.T) {
	r := New()

	s, err := r.Create("user-1", Attrs{Title: "Standup", SampleRate: 16000, Language: "en", Source: "web"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(s.ID, "sess_") {
		t.Errorf("ID = %q, want sess_ prefix", s.ID)
	}
	if s.Status() != StatusRecording {
		t.Errorf("status = %q, want %q", s.Status(), StatusRecording)
	}
	if s.Owner != "user-1" || s.Title != "Standup" || s.SampleRate != 16000 {
		t.Errorf("attrs not carried: %+v", s)
	}
	if s.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
}

func TestCreate_UniqueIDs(t *testing.T) {
	r := New()
	seen := make(map[string]bool)
	for range 100 {
		s, err := r.Create("u", Attrs{})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[s.ID] {
			t.Fatalf("duplicate id %q", s.ID)
		}
		seen[s.ID] = true
	}
}

func TestGet_NotFound(t *testing.T) {
	r := New()
	if _, err := r.Get("sess_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetOwned(t *testing.T) {
	r := New()
	s, _ := r.Create("alice", Attrs{})

	if _, err := r.GetOwned(s.ID, "alice"); err != nil {
		t.Errorf("owner lookup: %v", err)
	}
	if _, err := r.GetOwned(s.ID, "mallory"); !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
	if _, err := r.GetOwned("sess_nope", "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsertChunk_OverwritesSameSeq(t *testing.T) {
	r := New()
	s, _ := r.Create("u", Attrs{})

	if err := r.UpsertChunk(s.ID, ChunkMeta{Seq: 0, DurationSec: 2.0, Path: "a.wav"}); err != nil {
		t.Fatalf("UpsertChunk: %v", err)
	}
	if err := r.UpsertChunk(s.ID, ChunkMeta{Seq: 0, DurationSec: 3.5, Path: "b.wav"}); err != nil {
		t.Fatalf("UpsertChunk: %v", err)
	}

	if got := s.ChunksCount(); got != 1 {
		t.Errorf("ChunksCount = %d, want 1", got)
	}
	if got := s.TotalDurationSec(); got != 3.5 {
		t.Errorf("TotalDurationSec = %f, want 3.5", got)
	}
	chunks := s.OrderedChunks()
	if len(chunks) != 1 || chunks[0].Path != "b.wav" {
		t.Errorf("chunks = %+v, want single entry with b.wav", chunks)
	}
}

func TestOrderedChunks_SortsBySeq(t *testing.T) {
	r := New()
	s, _ := r.Create("u", Attrs{})

	for _, seq := range []int{7, 0, 3} {
		if err := r.UpsertChunk(s.ID, ChunkMeta{Seq: seq, DurationSec: 1}); err != nil {
			t.Fatalf("UpsertChunk(%d): %v", seq, err)
		}
	}

	chunks := s.OrderedChunks()
	want := []int{0, 3, 7}
	for i, c := range chunks {
		if c.Seq != want[i] {
			t.Errorf("chunks[%d].Seq = %d, want %d", i, c.Seq, want[i])
		}
	}
	if got := s.TotalDurationSec(); got != 3 {
		t.Errorf("TotalDurationSec = %f, want 3", got)
	}
}

func TestSetStatus_MonotonicOnly(t *testing.T) {
	r := New()
	s, _ := r.Create("u", Attrs{})

	if err := r.SetStatus(s.ID, StatusProcessing); err != nil {
		t.Fatalf("recording → processing: %v", err)
	}
	if err := r.SetStatus(s.ID, StatusDone); err != nil {
		t.Fatalf("processing → done: %v", err)
	}
	// Re-setting the current status is a no-op.
	if err := r.SetStatus(s.ID, StatusDone); err != nil {
		t.Errorf("done → done: %v", err)
	}
	// Going backwards is a programming error.
	if err := r.SetStatus(s.ID, StatusRecording); !errors.Is(err, ErrStatusRegression) {
		t.Errorf("done → recording err = %v, want ErrStatusRegression", err)
	}
	if s.Status() != StatusDone {
		t.Errorf("status after failed regression = %q, want done", s.Status())
	}
}

func TestSetStatus_InvalidValue(t *testing.T) {
	r := New()
	s, _ := r.Create("u", Attrs{})
	if err := r.SetStatus(s.ID, Status("paused")); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestRegistry_ConcurrentIngest(t *testing.T) {
	r := New()

	const sessions = 8
	const chunksPer = 50

	ids := make([]string, sessions)
	for i := range sessions {
		s, err := r.Create(fmt.Sprintf("user-%d", i), Attrs{})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids[i] = s.ID
	}

	var wg sync.WaitGroup
	for i := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seq := range chunksPer {
				if err := r.UpsertChunk(ids[i], ChunkMeta{Seq: seq, DurationSec: 0.5}); err != nil {
					t.Errorf("UpsertChunk: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	for i := range sessions {
		s, err := r.Get(ids[i])
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got := s.ChunksCount(); got != chunksPer {
			t.Errorf("session %d ChunksCount = %d, want %d", i, got, chunksPer)
		}
		if got := s.TotalDurationSec(); got != chunksPer*0.5 {
			t.Errorf("session %d TotalDurationSec = %f, want %f", i, got, chunksPer*0.5)
		}
	}
}
