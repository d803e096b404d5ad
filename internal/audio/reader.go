package audio

import (
	"errors"
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWAV decodes a PCM WAV file into mono float64 samples normalized to
// [-1, 1] and returns them together with the sample rate. Multi-channel
// input is downmixed by averaging.
func ReadWAV(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("%s: not a valid WAV file", path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("reading PCM data: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, 0, errors.New("missing or invalid WAV format chunk")
	}

	samples, err := toMonoFloat64(buf, int(decoder.BitDepth))
	if err != nil {
		return nil, 0, err
	}
	return samples, buf.Format.SampleRate, nil
}

// toMonoFloat64 normalizes an interleaved integer PCM buffer to mono
// float64 in [-1, 1].
func toMonoFloat64(buf *gaudio.IntBuffer, bitDepth int) ([]float64, error) {
	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, errors.New("invalid channel count")
	}
	if bitDepth <= 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	scale := 1.0 / float64(int64(1)<<(uint(bitDepth)-1))
	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		out[i] = sum / float64(channels) * scale
	}
	return out, nil
}
