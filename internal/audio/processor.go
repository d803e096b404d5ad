package audio

// Resample converts samples from one rate to another using linear
// interpolation. Good enough for fingerprinting, where band energies matter
// far more than phase accuracy. Returns the input unchanged when the rates
// already agree or either rate is non-positive.
func Resample(samples []float64, fromRate, toRate int) []float64 {
	if fromRate <= 0 || toRate <= 0 || fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(samples)) / ratio)
	if outLen < 1 {
		outLen = 1
	}

	out := make([]float64, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}

// MiddleWindow returns the centered span of at most maxSeconds of audio.
// Shorter clips are returned whole. Trimming to the middle avoids biasing
// a fingerprint with silent intros, outros, or fade noise.
func MiddleWindow(samples []float64, sampleRate int, maxSeconds float64) []float64 {
	if sampleRate <= 0 || maxSeconds <= 0 {
		return samples
	}
	maxLen := int(maxSeconds * float64(sampleRate))
	if len(samples) <= maxLen {
		return samples
	}
	start := (len(samples) - maxLen) / 2
	return samples[start : start+maxLen]
}
