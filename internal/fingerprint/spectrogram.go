package fingerprint

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Hanning returns a Hanning window of length n.
func Hanning(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// MagnitudeSpectrum converts a complex spectrum into a magnitude spectrum
// over the positive frequencies only.
func MagnitudeSpectrum(spectrum []complex128) []float64 {
	half := len(spectrum) / 2
	mag := make([]float64, half)
	for i := 0; i < half; i++ {
		mag[i] = cmplx.Abs(spectrum[i])
	}
	return mag
}

// STFT computes a time-major magnitude spectrogram:
// spectrogram[frameIdx][freqBin]. Input shorter than one window is
// zero-padded so there is always at least one frame.
func STFT(samples []float64, windowSize, hopSize int, window []float64) [][]float64 {
	if len(samples) == 0 || windowSize <= 0 || hopSize <= 0 {
		return nil
	}
	if len(samples) < windowSize {
		padded := make([]float64, windowSize)
		copy(padded, samples)
		samples = padded
	}

	var spectrogram [][]float64
	frame := make([]float64, windowSize)
	for start := 0; start+windowSize <= len(samples); start += hopSize {
		copy(frame, samples[start:start+windowSize])
		for i := 0; i < windowSize; i++ {
			frame[i] *= window[i]
		}
		spectrogram = append(spectrogram, MagnitudeSpectrum(fft.FFTReal(frame)))
	}
	return spectrogram
}
