package fingerprint

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Peak is a spectral landmark: a local magnitude maximum in the
// time-frequency plane.
type Peak struct {
	TimeIdx int
	FreqIdx int
	MagDB   float64
}

const (
	// local neighborhood for the 2D local-max check
	peakFreqNeighbour = 3
	peakTimeNeighbour = 1
	// minimum dB above the frame's band-maxima average to accept a peak
	peakMinDBAboveAvg = 2.0

	dbEps = 1e-10
)

// ExtractPeaks finds robust spectral peaks in a time-major magnitude
// spectrogram. Per frame, the strongest bin of each log-ish frequency band
// is taken as a candidate; a candidate survives if it clears an adaptive
// threshold (the frame's mean band-maximum level plus a margin) and is a
// strict local maximum in its 2D neighborhood. Peaks come out ordered by
// time, then frequency.
func ExtractPeaks(spectrogram [][]float64) []Peak {
	if len(spectrogram) == 0 || len(spectrogram[0]) == 0 {
		return nil
	}

	nFrames := len(spectrogram)
	nBins := len(spectrogram[0])

	// Doubling bands from bin 10 upward, clamped to nBins.
	bands := [][2]int{{0, min(10, nBins)}}
	for start := 10; start < nBins; start *= 2 {
		bands = append(bands, [2]int{start, min(start * 2, nBins)})
	}

	var peaks []Peak
	bandDB := make([]float64, len(bands))
	bandIdx := make([]int, len(bands))

	for t := 0; t < nFrames; t++ {
		frame := spectrogram[t]

		for bi, b := range bands {
			maxMag, maxIdx := 0.0, b[0]
			for i := b[0]; i < b[1]; i++ {
				if frame[i] > maxMag {
					maxMag, maxIdx = frame[i], i
				}
			}
			bandDB[bi] = 20 * math.Log10(maxMag+dbEps)
			bandIdx[bi] = maxIdx
		}

		avgDB := stat.Mean(bandDB, nil)

		for bi, magDB := range bandDB {
			if magDB < avgDB+peakMinDBAboveAvg {
				continue
			}
			bin := bandIdx[bi]
			mag := frame[bin]
			if mag <= 0 {
				continue
			}

			if !isLocalMax(spectrogram, t, bin, mag) {
				continue
			}

			peaks = append(peaks, Peak{TimeIdx: t, FreqIdx: bin, MagDB: magDB})
		}
	}
	return peaks
}

func isLocalMax(spectrogram [][]float64, t, bin int, mag float64) bool {
	for dt := -peakTimeNeighbour; dt <= peakTimeNeighbour; dt++ {
		tIdx := t + dt
		if tIdx < 0 || tIdx >= len(spectrogram) {
			continue
		}
		for df := -peakFreqNeighbour; df <= peakFreqNeighbour; df++ {
			fIdx := bin + df
			if fIdx < 0 || fIdx >= len(spectrogram[tIdx]) {
				continue
			}
			if dt == 0 && df == 0 {
				continue
			}
			if spectrogram[tIdx][fIdx] > mag {
				return false
			}
		}
	}
	return true
}
