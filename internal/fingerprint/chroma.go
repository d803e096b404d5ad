package fingerprint

import "math"

// Tunables for the chroma variant.
const (
	chromaWindowSize = 4096
	chromaHopSize    = 2048
	chromaClasses    = 12
	chromaFrames     = 12
	chromaMinHz      = 55.0   // A1
	chromaMaxHz      = 5000.0 // above this, bin resolution per semitone is poor
	chromaRefHz      = 440.0  // A4
)

// pitchClass folds a frequency onto one of the 12 pitch classes, A = 0.
func pitchClass(freq float64) int {
	semitones := int(math.Round(chromaClasses * math.Log2(freq/chromaRefHz)))
	return ((semitones % chromaClasses) + chromaClasses) % chromaClasses
}

// computeChroma accumulates per-frame pitch-class magnitudes, smooths
// across adjacent frames, then folds time down to at most 12 frames of 12
// classes each, max-normalized per frame. 12 x 12 = 144 values.
func computeChroma(samples []float64, sampleRate int) []float64 {
	vec := make([]float64, Chroma.VectorLen())

	window := Hanning(chromaWindowSize)
	spec := STFT(samples, chromaWindowSize, chromaHopSize, window)
	if len(spec) == 0 {
		return vec
	}

	binHz := float64(sampleRate) / float64(chromaWindowSize)
	raw := make([][]float64, len(spec))
	for t, frame := range spec {
		classes := make([]float64, chromaClasses)
		for i := 1; i < len(frame); i++ {
			freq := float64(i) * binHz
			if freq < chromaMinHz || freq > chromaMaxHz {
				continue
			}
			classes[pitchClass(freq)] += frame[i]
		}
		raw[t] = classes
	}

	// Light smoothing across adjacent frames.
	smoothed := make([][]float64, len(raw))
	for t := range raw {
		classes := make([]float64, chromaClasses)
		count := 0.0
		for dt := -1; dt <= 1; dt++ {
			if t+dt < 0 || t+dt >= len(raw) {
				continue
			}
			for c := 0; c < chromaClasses; c++ {
				classes[c] += raw[t+dt][c]
			}
			count++
		}
		for c := range classes {
			classes[c] /= count
		}
		smoothed[t] = classes
	}

	// Fold time down to at most chromaFrames temporal blocks.
	blocks := chromaFrames
	if len(smoothed) < blocks {
		blocks = len(smoothed)
	}
	perBlock := len(smoothed) / blocks
	for b := 0; b < blocks; b++ {
		start := b * perBlock
		end := start + perBlock
		if b == blocks-1 {
			end = len(smoothed)
		}

		block := make([]float64, chromaClasses)
		for t := start; t < end; t++ {
			for c := 0; c < chromaClasses; c++ {
				block[c] += smoothed[t][c]
			}
		}

		var max float64
		for _, v := range block {
			if v > max {
				max = v
			}
		}
		if max == 0 {
			continue
		}
		for c := 0; c < chromaClasses; c++ {
			vec[b*chromaClasses+c] = block[c] / max
		}
	}
	return vec
}
