package fingerprint

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"takematch/internal/audio"
)

// Tunables for the lightweight variant.
const (
	lightweightBands      = 32
	lightweightRate       = 11025
	lightweightWindowSize = 1024
	lightweightHopSize    = 512
	lightweightMinHz      = 60.0
	lightweightMaxHz      = 6000.0
	lightweightMaxSeconds = 60.0
)

// computeLightweight produces a single 32-element band profile tuned for
// cheap cosine comparison. The signal is downsampled to ~11 kHz and only
// the middle 60 seconds are used, which keeps quiet intros and fade-outs
// from dominating short-band statistics.
func computeLightweight(samples []float64, sampleRate int) []float64 {
	vec := make([]float64, Lightweight.VectorLen())

	ds := audio.Resample(samples, sampleRate, lightweightRate)
	ds = audio.MiddleWindow(ds, lightweightRate, lightweightMaxSeconds)

	window := Hanning(lightweightWindowSize)
	spec := STFT(ds, lightweightWindowSize, lightweightHopSize, window)
	if len(spec) == 0 {
		return vec
	}

	edges := logBandEdges(lightweightBands, lightweightMinHz, lightweightMaxHz)
	for _, frame := range spec {
		bands := bandMagnitudes(frame, lightweightRate, lightweightWindowSize, edges)
		for b, m := range bands {
			vec[b] += math.Log1p(m)
		}
	}
	for b := range vec {
		vec[b] /= float64(len(spec))
	}

	if norm := floats.Norm(vec, 2); norm > 0 {
		floats.Scale(1/norm, vec)
	}
	return vec
}
