package audio

import (
	"errors"
	"math"
	"testing"
)

func TestEncodeDecodeWAV(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768}

	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	got, rate, channels, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 16000 {
		t.Errorf("rate = %d, want 16000", rate)
	}
	if channels != 1 {
		t.Errorf("channels = %d, want 1", channels)
	}
	if len(got) != len(samples) {
		t.Fatalf("len = %d, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample[%d] = %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestEncodeWAV_Empty(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Error("expected error for empty samples")
	}
	if _, err := EncodeWAV([]int16{1}, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestDecodeWAV_NotWAV(t *testing.T) {
	_, _, _, err := DecodeWAV([]byte("definitely not audio data, sorry"))
	if !errors.Is(err, ErrNotWAV) {
		t.Errorf("err = %v, want ErrNotWAV", err)
	}
}

func TestDecodeWAV_SkipsMetadataChunks(t *testing.T) {
	samples := []int16{10, 20, 30, 40}
	data, err := EncodeWAV(samples, 8000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	// Splice a LIST chunk between fmt and data.
	list := append([]byte("LIST"), 0x04, 0x00, 0x00, 0x00, 'I', 'N', 'F', 'O')
	spliced := make([]byte, 0, len(data)+len(list))
	spliced = append(spliced, data[:36]...)
	spliced = append(spliced, list...)
	spliced = append(spliced, data[36:]...)

	got, rate, _, err := DecodeWAV(spliced)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 8000 || len(got) != len(samples) {
		t.Errorf("rate = %d len = %d, want 8000 and %d", rate, len(got), len(samples))
	}
}

func TestDownmix_StereoAverages(t *testing.T) {
	stereo := []int16{100, 200, -100, 100, 400, 600}
	mono := Downmix(stereo, 2)

	want := []int16{150, 0, 500}
	if len(mono) != len(want) {
		t.Fatalf("len = %d, want %d", len(mono), len(want))
	}
	for i := range want {
		if mono[i] != want[i] {
			t.Errorf("mono[%d] = %d, want %d", i, mono[i], want[i])
		}
	}
}

func TestDownmix_MonoPassthrough(t *testing.T) {
	in := []int16{1, 2, 3}
	out := Downmix(in, 1)
	if &out[0] != &in[0] {
		t.Error("mono input should be returned unchanged")
	}
}

func TestResample_HalvesRate(t *testing.T) {
	in := make([]int16, 1600) // 100ms at 16kHz
	out := Resample(in, 16000, 8000)
	if len(out) != 800 {
		t.Errorf("len = %d, want 800", len(out))
	}
}

func TestResample_SameRatePassthrough(t *testing.T) {
	in := []int16{5, 6, 7}
	out := Resample(in, 16000, 16000)
	if &out[0] != &in[0] {
		t.Error("same-rate input should be returned unchanged")
	}
}

func TestResample_PreservesConstantSignal(t *testing.T) {
	in := make([]int16, 500)
	for i := range in {
		in[i] = 1234
	}
	out := Resample(in, 8000, 16000)
	if len(out) != 1000 {
		t.Fatalf("len = %d, want 1000", len(out))
	}
	for i, s := range out {
		if math.Abs(float64(s)-1234) > 1 {
			t.Fatalf("out[%d] = %d, want ~1234", i, s)
		}
	}
}

func TestDuration(t *testing.T) {
	if d := Duration(16000, 16000); d != 1.0 {
		t.Errorf("Duration = %f, want 1.0", d)
	}
	if d := Duration(100, 0); d != 0 {
		t.Errorf("Duration with zero rate = %f, want 0", d)
	}
}
