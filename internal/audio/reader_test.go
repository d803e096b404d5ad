package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV encodes 16-bit PCM test audio to a temp file.
func writeWAV(t *testing.T, path string, data []int, channels, sampleRate int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestReadWAVMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	data := make([]int, 4410)
	for i := range data {
		data[i] = int(16000 * math.Sin(2*math.Pi*440*float64(i)/44100))
	}
	writeWAV(t, path, data, 1, 44100)

	samples, sampleRate, err := ReadWAV(path)
	if err != nil {
		t.Fatal(err)
	}

	if sampleRate != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", sampleRate)
	}
	if len(samples) != len(data) {
		t.Errorf("Expected %d samples, got %d", len(data), len(samples))
	}
	for i, s := range samples {
		if s < -1.0 || s > 1.0 {
			t.Errorf("Sample %d out of range [-1,1]: %f", i, s)
			break
		}
	}
}

func TestReadWAVStereoDownmix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	// Interleaved L/R where L = 8000, R = -8000: downmix should be ~0.
	frames := 1000
	data := make([]int, frames*2)
	for i := 0; i < frames; i++ {
		data[2*i] = 8000
		data[2*i+1] = -8000
	}
	writeWAV(t, path, data, 2, 22050)

	samples, _, err := ReadWAV(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(samples) != frames {
		t.Errorf("Expected %d downmixed frames, got %d", frames, len(samples))
	}
	for i, s := range samples {
		if math.Abs(s) > 1e-9 {
			t.Errorf("Frame %d: expected cancel-out downmix ~0, got %f", i, s)
			break
		}
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(path, []byte("this is not audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadWAV(path); err == nil {
		t.Error("Expected error for non-WAV input")
	}
}

func TestResample(t *testing.T) {
	samples := make([]float64, 44100)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * 100 * float64(i) / 44100)
	}

	out := Resample(samples, 44100, 11025)

	expected := len(samples) / 4
	if len(out) != expected {
		t.Errorf("Expected ~%d samples after 4x downsample, got %d", expected, len(out))
	}
	for i, s := range out {
		if s < -1.0 || s > 1.0 {
			t.Errorf("Resampled value %d out of range: %f", i, s)
			break
		}
	}
}

func TestResampleNoOp(t *testing.T) {
	samples := []float64{0.1, 0.2, 0.3}
	if out := Resample(samples, 44100, 44100); len(out) != 3 {
		t.Errorf("Equal rates should be a no-op, got %d samples", len(out))
	}
	if out := Resample(samples, 0, 44100); len(out) != 3 {
		t.Errorf("Non-positive rate should be a no-op, got %d samples", len(out))
	}
}

func TestMiddleWindow(t *testing.T) {
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = float64(i)
	}

	out := MiddleWindow(samples, 10, 4) // at most 40 samples from the middle
	if len(out) != 40 {
		t.Fatalf("Expected 40 samples, got %d", len(out))
	}
	if out[0] != 30 {
		t.Errorf("Expected window to start at sample 30, got %v", out[0])
	}

	short := MiddleWindow(samples, 10, 60)
	if len(short) != 100 {
		t.Errorf("Clip shorter than the window should come back whole, got %d", len(short))
	}
}
