package match

import (
	"errors"
	"math"
	"testing"

	"takematch/internal/collect"
	"takematch/internal/fingerprint"
)

// unitVec builds a unit vector whose cosine similarity against
// unitVec(1)… i.e. the reference direction (1, 0) is exactly cos.
func unitVec(cos float64) []float64 {
	return []float64{cos, math.Sqrt(1 - cos*cos)}
}

func fp(vec []float64) fingerprint.Fingerprint {
	return fingerprint.Fingerprint{Algorithm: fingerprint.Lightweight, Vector: vec}
}

// target is the reference direction all unitVec cosines are measured from.
func target() fingerprint.Fingerprint {
	return fp([]float64{1, 0})
}

func source(dir string, cos float64) collect.Source {
	return collect.Source{Dir: dir, Fingerprint: fp(unitVec(cos))}
}

func TestSimilaritySelf(t *testing.T) {
	a := fp([]float64{0.3, 0.5, 0.2, 0.9})
	score, err := Similarity(a, a)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(score-1.0) > 1e-12 {
		t.Errorf("Self-similarity should be ~1.0, got %v", score)
	}
}

func TestSimilaritySymmetry(t *testing.T) {
	a := fp([]float64{0.3, 0.5, 0.2, 0.9})
	b := fp([]float64{0.1, 0.8, 0.4, 0.2})

	ab, err := Similarity(a, b)
	if err != nil {
		t.Fatal(err)
	}
	ba, err := Similarity(b, a)
	if err != nil {
		t.Fatal(err)
	}
	if ab != ba {
		t.Errorf("Similarity not symmetric: %v vs %v", ab, ba)
	}
}

func TestSimilarityRange(t *testing.T) {
	opposite, err := Similarity(fp([]float64{1, 0}), fp([]float64{-1, 0}))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(opposite+1) > 1e-12 {
		t.Errorf("Opposite vectors should score -1 unclamped, got %v", opposite)
	}

	orthogonal, err := Similarity(fp([]float64{1, 0}), fp([]float64{0, 1}))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(orthogonal) > 1e-12 {
		t.Errorf("Orthogonal vectors should score 0, got %v", orthogonal)
	}
}

func TestSimilarityZeroVector(t *testing.T) {
	score, err := Similarity(fp([]float64{0, 0}), fp([]float64{1, 0}))
	if err != nil {
		t.Fatal(err)
	}
	if score != 0 {
		t.Errorf("Zero vector should score 0, got %v", score)
	}
}

func TestSimilarityShapeMismatch(t *testing.T) {
	a := fingerprint.Fingerprint{Algorithm: fingerprint.Spectral, Vector: []float64{1, 0}}
	b := fingerprint.Fingerprint{Algorithm: fingerprint.Chroma, Vector: []float64{1, 0}}

	if _, err := Similarity(a, b); err == nil {
		t.Error("Expected shape mismatch for different algorithm tags")
	} else {
		var mismatch *ShapeMismatchError
		if !errors.As(err, &mismatch) {
			t.Errorf("Expected *ShapeMismatchError, got %T", err)
		}
	}

	short := fp([]float64{1})
	long := fp([]float64{1, 0})
	if _, err := Similarity(short, long); err == nil {
		t.Error("Expected shape mismatch for different lengths")
	}
}

func TestFindBestMatchNothingAboveThreshold(t *testing.T) {
	collection := collect.Collection{
		"song.wav": {source("x", 0.5)},
	}
	if best := FindBestMatch(target(), collection, 0.7); best != nil {
		t.Errorf("Expected no match, got %+v", best)
	}
}

func TestFindBestMatchUniquenessPreference(t *testing.T) {
	// A unique title at 0.75 must beat a recurring title at >= 0.90.
	collection := collect.Collection{
		"song_a.wav": {source("dirs/unique", 0.75)},
		"song_b.wav": {
			source("dirs/one", 0.90),
			source("dirs/two", 0.92),
			source("dirs/three", 0.95),
		},
	}

	best := FindBestMatch(target(), collection, 0.70)
	if best == nil {
		t.Fatal("Expected a match")
	}
	if best.Filename != "song_a.wav" {
		t.Errorf("Expected unique song_a.wav to win, got %s (%.2f)", best.Filename, best.Score)
	}
	if math.Abs(best.Score-0.75) > 1e-9 {
		t.Errorf("Expected score 0.75, got %v", best.Score)
	}
}

func TestFindBestMatchFallsBackToCommon(t *testing.T) {
	collection := collect.Collection{
		"song_b.wav": {
			source("dirs/one", 0.90),
			source("dirs/two", 0.95),
		},
	}

	best := FindBestMatch(target(), collection, 0.70)
	if best == nil {
		t.Fatal("Expected a common-tier match")
	}
	if best.Filename != "song_b.wav" || best.Directory != "dirs/two" {
		t.Errorf("Expected highest-scoring common match from dirs/two, got %+v", best)
	}
}

func TestFindBestMatchCommonTieBreaksByDirectory(t *testing.T) {
	collection := collect.Collection{
		"song.wav": {
			source("dirs/zebra", 0.9),
			source("dirs/alpha", 0.9),
		},
	}

	best := FindBestMatch(target(), collection, 0.70)
	if best == nil {
		t.Fatal("Expected a match")
	}
	if best.Directory != "dirs/alpha" {
		t.Errorf("Tie should break to ascending directory name, got %s", best.Directory)
	}
}

func TestFindBestMatchHighestUniqueWins(t *testing.T) {
	collection := collect.Collection{
		"low.wav":  {source("a", 0.72)},
		"high.wav": {source("b", 0.81)},
	}

	best := FindBestMatch(target(), collection, 0.70)
	if best == nil || best.Filename != "high.wav" {
		t.Errorf("Expected high.wav, got %+v", best)
	}
}

func TestFindBestMatchThresholdMonotonicity(t *testing.T) {
	collection := collect.Collection{
		"a.wav": {source("x", 0.71)},
		"b.wav": {source("y", 0.80)},
		"c.wav": {source("z", 0.92)},
	}

	prev := len(candidatesAbove(t, collection, 0.0))
	for _, threshold := range []float64{0.5, 0.7, 0.75, 0.85, 0.95, 1.0} {
		count := len(candidatesAbove(t, collection, threshold))
		if count > prev {
			t.Errorf("Raising threshold to %v increased candidates: %d > %d", threshold, count, prev)
		}
		prev = count
	}
}

// candidatesAbove mirrors the engine's retention rule for the
// monotonicity check.
func candidatesAbove(t *testing.T, collection collect.Collection, threshold float64) []string {
	t.Helper()
	var retained []string
	for name, sources := range collection {
		for _, src := range sources {
			score, err := Similarity(target(), src.Fingerprint)
			if err != nil {
				t.Fatal(err)
			}
			if score > 0 && score >= threshold {
				retained = append(retained, name)
			}
		}
	}
	return retained
}

func TestFindBestMatchSkipsMalformedEntry(t *testing.T) {
	collection := collect.Collection{
		"broken.wav": {{
			Dir:         "x",
			Fingerprint: fingerprint.Fingerprint{Algorithm: fingerprint.Chroma, Vector: []float64{1, 0}},
		}},
		"good.wav": {source("y", 0.9)},
	}

	best := FindBestMatch(target(), collection, 0.70)
	if best == nil || best.Filename != "good.wav" {
		t.Errorf("Malformed entry should be skipped, not fatal; got %+v", best)
	}
}

func TestFindBestMatchEndToEndScenario(t *testing.T) {
	// song_a.wav exists only in directory X (0.82); song_b.wav is in both X
	// (0.95) and Y (0.93). The unique candidate wins despite the lower raw
	// score.
	collection := collect.Collection{
		"song_a.wav": {source("refs/x", 0.82)},
		"song_b.wav": {
			source("refs/x", 0.95),
			source("refs/y", 0.93),
		},
	}

	best := FindBestMatch(target(), collection, 0.70)
	if best == nil {
		t.Fatal("Expected a match")
	}
	if best.Filename != "song_a.wav" || best.Directory != "refs/x" {
		t.Errorf("Expected song_a.wav from refs/x, got %+v", best)
	}
	if math.Abs(best.Score-0.82) > 1e-9 {
		t.Errorf("Expected score 0.82, got %v", best.Score)
	}
}
