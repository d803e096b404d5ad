package fingerprint

import (
	"encoding/binary"

	"github.com/OneOfOne/xxhash"
)

// Tunables for the constellation variant.
const (
	constellationBuckets = 256
	constWindowSize      = 1024
	constHopSize         = 512

	// anchor/target pairing window
	constFanOut        = 6
	constMinDeltaT     = 1
	constMaxDeltaT     = 60
	constMaxFreqDeltaB = 128

	// bit widths of the packed pair address
	constFreqBits  = 9
	constDeltaBits = 14
)

// packAddress encodes an anchor/target peak pair as
// [anchorFreq | targetFreq | timeDelta] in a 32-bit address. Pairs whose
// fields do not fit the allotted bits are dropped.
func packAddress(anchor, target Peak) (uint32, bool) {
	freqMask := uint32(1<<constFreqBits - 1)
	deltaMask := uint32(1<<constDeltaBits - 1)

	af, tf := uint32(anchor.FreqIdx), uint32(target.FreqIdx)
	dt := uint32(target.TimeIdx - anchor.TimeIdx)
	if af > freqMask || tf > freqMask || dt > deltaMask {
		return 0, false
	}

	return af<<(constDeltaBits+constFreqBits) | tf<<constDeltaBits | dt, true
}

// computeConstellation builds a 256-bucket histogram of hashed peak pairs.
// Each peak anchors up to 6 later peaks inside a bounded time/frequency
// window; each pair's packed (anchorFreq, targetFreq, timeDelta) address is
// hashed into a bucket. Counting hashed landmarks instead of raw spectra
// makes this variant resistant to noise and small time shifts.
func computeConstellation(samples []float64, sampleRate int) []float64 {
	vec := make([]float64, Constellation.VectorLen())

	window := Hanning(constWindowSize)
	spec := STFT(samples, constWindowSize, constHopSize, window)
	peaks := ExtractPeaks(spec)

	var buf [4]byte
	for i, anchor := range peaks {
		pairs := 0
		for j := i + 1; j < len(peaks) && pairs < constFanOut; j++ {
			target := peaks[j]
			dt := target.TimeIdx - anchor.TimeIdx
			if dt < constMinDeltaT {
				continue
			}
			if dt > constMaxDeltaT {
				break
			}
			df := target.FreqIdx - anchor.FreqIdx
			if df < -constMaxFreqDeltaB || df > constMaxFreqDeltaB {
				continue
			}

			addr, ok := packAddress(anchor, target)
			if !ok {
				continue
			}
			binary.LittleEndian.PutUint32(buf[:], addr)
			vec[xxhash.Checksum32(buf[:])%constellationBuckets]++
			pairs++
		}
	}
	return vec
}
