package fingerprint

import (
	"errors"
	"fmt"
)

// Algorithm selects one of the fingerprinting strategies. Vectors produced
// by different algorithms are never comparable.
type Algorithm string

const (
	Spectral      Algorithm = "spectral"
	Lightweight   Algorithm = "lightweight"
	Chroma        Algorithm = "chroma"
	Constellation Algorithm = "constellation"
)

// Algorithms lists every supported variant in a stable order.
var Algorithms = []Algorithm{Spectral, Lightweight, Chroma, Constellation}

var ErrUnknownAlgorithm = errors.New("unknown fingerprint algorithm")

// ParseAlgorithm validates a user-supplied algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(s)
	if a.VectorLen() == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
	return a, nil
}

// VectorLen returns the fixed vector length of the algorithm, or 0 for an
// unknown algorithm.
func (a Algorithm) VectorLen() int {
	switch a {
	case Spectral:
		return 144
	case Lightweight:
		return 32
	case Chroma:
		return 144
	case Constellation:
		return 256
	default:
		return 0
	}
}

// Fingerprint is a fixed-length numeric summary of an audio clip, tagged
// with the algorithm that produced it.
type Fingerprint struct {
	Algorithm Algorithm
	Vector    []float64
}

// Compute dispatches to one of the four generator variants. Identical input
// always yields a bit-identical vector.
//
// Degenerate input (no samples, or a non-positive sample rate) yields the
// all-zero vector of the correct length instead of an error, so a batch run
// never aborts on one bad file. Only an unknown algorithm is an error.
func Compute(samples []float64, sampleRate int, algorithm Algorithm) (Fingerprint, error) {
	length := algorithm.VectorLen()
	if length == 0 {
		return Fingerprint{}, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}

	if len(samples) == 0 || sampleRate <= 0 {
		return Fingerprint{Algorithm: algorithm, Vector: make([]float64, length)}, nil
	}

	var vec []float64
	switch algorithm {
	case Spectral:
		vec = computeSpectral(samples, sampleRate)
	case Lightweight:
		vec = computeLightweight(samples, sampleRate)
	case Chroma:
		vec = computeChroma(samples, sampleRate)
	case Constellation:
		vec = computeConstellation(samples, sampleRate)
	}
	return Fingerprint{Algorithm: algorithm, Vector: vec}, nil
}
