package fingerprint

import "github.com/mjibson/go-dsp/fft"

// Tunables for the spectral variant.
const (
	spectralBands       = 12
	spectralMinSegments = 4
	spectralMaxSegments = 12
	spectralMinHz       = 100.0
)

// computeSpectral splits the clip into 4-12 half-overlapping segments
// (longer clips get more segments), windows each, and keeps 12
// log-spaced band energies per segment, normalized by the segment's total
// energy so the result is volume-independent. Per-segment vectors are
// concatenated into a fixed 144-element vector, zero-padded when fewer
// than 12 segments exist.
func computeSpectral(samples []float64, sampleRate int) []float64 {
	vec := make([]float64, Spectral.VectorLen())

	durationSec := float64(len(samples)) / float64(sampleRate)
	segments := spectralMinSegments + int(durationSec)/15
	if segments > spectralMaxSegments {
		segments = spectralMaxSegments
	}

	// With 50% overlap, n segments of length 2*hop span (n+1)*hop samples.
	hop := len(samples) / (segments + 1)
	if hop == 0 {
		hop = len(samples)
	}
	segLen := 2 * hop
	window := Hanning(segLen)
	edges := logBandEdges(spectralBands, spectralMinHz, float64(sampleRate)/2)

	for s := 0; s < segments; s++ {
		start := s * hop
		end := start + segLen
		if end > len(samples) {
			end = len(samples)
		}
		if start >= end {
			break
		}

		frame := make([]float64, segLen)
		copy(frame, samples[start:end])
		for i := range frame {
			frame[i] *= window[i]
		}

		mag := MagnitudeSpectrum(fft.FFTReal(frame))
		bands := bandMagnitudes(mag, sampleRate, segLen, edges)

		// Energy per band, normalized by segment energy.
		var total float64
		for b := range bands {
			bands[b] *= bands[b]
			total += bands[b]
		}
		if total == 0 {
			continue
		}
		for b := 0; b < spectralBands && s*spectralBands+b < len(vec); b++ {
			vec[s*spectralBands+b] = bands[b] / total
		}
	}
	return vec
}
