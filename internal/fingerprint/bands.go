package fingerprint

import "math"

// logBandEdges returns numBands+1 logarithmically spaced frequency edges
// between minHz and maxHz.
func logBandEdges(numBands int, minHz, maxHz float64) []float64 {
	edges := make([]float64, numBands+1)
	ratio := maxHz / minHz
	for i := 0; i <= numBands; i++ {
		edges[i] = minHz * math.Pow(ratio, float64(i)/float64(numBands))
	}
	return edges
}

// bandMagnitudes sums spectrum magnitudes into the bands described by edges.
// fftSize is the full FFT length the magnitudes were derived from, so the
// Hz position of bin i is i*sampleRate/fftSize.
func bandMagnitudes(mag []float64, sampleRate, fftSize int, edges []float64) []float64 {
	numBands := len(edges) - 1
	out := make([]float64, numBands)
	binHz := float64(sampleRate) / float64(fftSize)
	for i, m := range mag {
		freq := float64(i) * binHz
		if freq < edges[0] || freq >= edges[numBands] {
			continue
		}
		// Linear scan is fine: numBands is 12 or 32.
		for b := 0; b < numBands; b++ {
			if freq >= edges[b] && freq < edges[b+1] {
				out[b] += m
				break
			}
		}
	}
	return out
}
