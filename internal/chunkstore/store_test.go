package chunkstore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scribed-io/scribed/pkg/audio"
)

// wavChunk builds a small mono WAV file whose samples all carry the given
// value, handy for asserting concatenation order.
func wavChunk(t *testing.T, value int16, n, rate int) []byte {
	t.Helper()
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = value
	}
	data, err := audio.EncodeWAV(samples, rate)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	return data
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestPut_WritesFileAndReturnsHandle(t *testing.T) {
	s := newStore(t)

	path, err := s.Put("sess_ab", 3, "audio/wav", wavChunk(t, 1, 10, 16000))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasSuffix(path, filepath.Join("sess_ab", "000003.wav")) {
		t.Errorf("path = %q, want .../sess_ab/000003.wav", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("stat handle: %v", err)
	}
}

func TestPut_SameSeqOverwrites(t *testing.T) {
	s := newStore(t)

	first, err := s.Put("sess_ab", 0, "audio/wav", wavChunk(t, 1, 10, 16000))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	second, err := s.Put("sess_ab", 0, "audio/wav", wavChunk(t, 2, 20, 16000))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if first != second {
		t.Errorf("overwrite produced a new handle: %q vs %q", first, second)
	}

	out, err := s.Concat("sess_ab", 16000)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read combined: %v", err)
	}
	samples, _, _, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if len(samples) != 20 {
		t.Errorf("combined samples = %d, want 20 (last write wins)", len(samples))
	}
}

func TestConcat_OrdersBySeqRegardlessOfArrival(t *testing.T) {
	s := newStore(t)

	// Arrive out of order: 2, 0, 1. Each chunk is 5 samples of a marker value.
	for _, c := range []struct {
		seq   int
		value int16
	}{{2, 30}, {0, 10}, {1, 20}} {
		if _, err := s.Put("sess_x", c.seq, "audio/wav", wavChunk(t, c.value, 5, 16000)); err != nil {
			t.Fatalf("Put seq %d: %v", c.seq, err)
		}
	}

	out, err := s.Concat("sess_x", 16000)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	data, _ := os.ReadFile(out)
	samples, rate, channels, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 16000 || channels != 1 {
		t.Errorf("combined format = %d Hz %d ch, want 16000 Hz mono", rate, channels)
	}
	if len(samples) != 15 {
		t.Fatalf("combined samples = %d, want 15", len(samples))
	}
	// Marker values must appear in seq order: 10s, then 20s, then 30s.
	for i, want := range []int16{10, 20, 30} {
		if got := samples[i*5]; got != want {
			t.Errorf("segment %d starts with %d, want %d", i, got, want)
		}
	}
}

func TestConcat_ToleratesSeqGaps(t *testing.T) {
	s := newStore(t)

	// seq 5 and 9 only; the gap contributes nothing.
	for _, seq := range []int{9, 5} {
		if _, err := s.Put("sess_g", seq, "audio/wav", wavChunk(t, int16(seq), 4, 16000)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	out, err := s.Concat("sess_g", 16000)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	data, _ := os.ReadFile(out)
	samples, _, _, _ := audio.DecodeWAV(data)
	if len(samples) != 8 {
		t.Errorf("combined samples = %d, want 8", len(samples))
	}
	if samples[0] != 5 || samples[4] != 9 {
		t.Errorf("segments out of order: first=%d fifth=%d", samples[0], samples[4])
	}
}

func TestConcat_ResamplesToTargetRate(t *testing.T) {
	s := newStore(t)

	// One second of 8 kHz audio must become one second of 16 kHz audio.
	if _, err := s.Put("sess_r", 0, "audio/wav", wavChunk(t, 7, 8000, 8000)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	out, err := s.Concat("sess_r", 16000)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	data, _ := os.ReadFile(out)
	samples, rate, _, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 16000 {
		t.Errorf("rate = %d, want 16000", rate)
	}
	if len(samples) != 16000 {
		t.Errorf("samples = %d, want 16000", len(samples))
	}
}

func TestConcat_NoChunks(t *testing.T) {
	s := newStore(t)
	if _, err := s.Concat("sess_empty", 16000); !errors.Is(err, ErrNoChunks) {
		t.Errorf("err = %v, want ErrNoChunks", err)
	}
}

func TestConcat_RawPCMFallback(t *testing.T) {
	s := newStore(t)

	raw := make([]byte, 40) // 20 PCM16 samples of silence
	if _, err := s.Put("sess_p", 0, "audio/pcm", raw); err != nil {
		t.Fatalf("Put: %v", err)
	}

	out, err := s.Concat("sess_p", 16000)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	data, _ := os.ReadFile(out)
	samples, _, _, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if len(samples) != 20 {
		t.Errorf("samples = %d, want 20", len(samples))
	}
}

func TestNew_EmptyDir(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty root")
	}
}
