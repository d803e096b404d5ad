// Package match scores fingerprints against a reference collection and
// selects a best match.
package match

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"takematch/internal/collect"
	"takematch/internal/fingerprint"
	"takematch/pkg/logger"
)

// ShapeMismatchError reports an attempt to compare fingerprints from
// different algorithms or of different lengths.
type ShapeMismatchError struct {
	AlgorithmA, AlgorithmB fingerprint.Algorithm
	LenA, LenB             int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("fingerprint shape mismatch: %s[%d] vs %s[%d]",
		e.AlgorithmA, e.LenA, e.AlgorithmB, e.LenB)
}

// Similarity returns the raw cosine similarity between two fingerprints in
// [-1, 1]. Values at or below zero count as "no match" when thresholding,
// but are returned unclamped. A zero vector has no direction, so any
// comparison against one scores 0.
func Similarity(a, b fingerprint.Fingerprint) (float64, error) {
	if a.Algorithm != b.Algorithm || len(a.Vector) != len(b.Vector) {
		return 0, &ShapeMismatchError{
			AlgorithmA: a.Algorithm, AlgorithmB: b.Algorithm,
			LenA: len(a.Vector), LenB: len(b.Vector),
		}
	}

	normA := floats.Norm(a.Vector, 2)
	normB := floats.Norm(b.Vector, 2)
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return floats.Dot(a.Vector, b.Vector) / (normA * normB), nil
}

// Match is a suggested identification for a target fingerprint.
type Match struct {
	Filename  string
	Score     float64
	Directory string
}

// FindBestMatch scores the target against every reference fingerprint and
// picks a winner in two tiers: a filename known from exactly one reference
// directory beats any filename recurring across several, regardless of raw
// score. Recurring titles are exactly the ones where acoustic similarity
// alone tends to pick the wrong take, so uniqueness is the stronger
// identity signal. Within the common tier, score ties break on ascending
// directory name for determinism.
//
// A malformed reference entry only skips that one comparison; the rest of
// the collection is still scored. Returns nil when nothing clears the
// threshold.
func FindBestMatch(target fingerprint.Fingerprint, collection collect.Collection, threshold float64) *Match {
	var bestUnique, bestCommon *Match

	for name, sources := range collection {
		unique := len(sources) == 1
		for _, src := range sources {
			score, err := Similarity(target, src.Fingerprint)
			if err != nil {
				logger.Warnf("skipping %s from %s: %v", name, src.Dir, err)
				continue
			}
			if score <= 0 || score < threshold {
				continue
			}

			candidate := &Match{Filename: name, Score: score, Directory: src.Dir}
			if unique {
				bestUnique = better(bestUnique, candidate)
			} else {
				bestCommon = better(bestCommon, candidate)
			}
		}
	}

	if bestUnique != nil {
		return bestUnique
	}
	return bestCommon
}

// better keeps the higher-scoring match, breaking exact score ties by
// ascending directory name, then filename.
func better(current, candidate *Match) *Match {
	if current == nil {
		return candidate
	}
	if candidate.Score > current.Score {
		return candidate
	}
	if candidate.Score == current.Score {
		if candidate.Directory < current.Directory {
			return candidate
		}
		if candidate.Directory == current.Directory && candidate.Filename < current.Filename {
			return candidate
		}
	}
	return current
}
