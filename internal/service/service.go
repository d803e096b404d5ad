// Package service is the public surface consumed by the CLI: batch
// fingerprint generation, exclusion toggling, reference discovery, and
// best-match lookup.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"takematch/internal/audio"
	"takematch/internal/cache"
	"takematch/internal/collect"
	"takematch/internal/fingerprint"
	"takematch/internal/match"
	"takematch/pkg/logger"
)

// ErrBadThreshold rejects a match threshold outside [0, 1].
var ErrBadThreshold = errors.New("threshold must be within [0, 1]")

type Service struct {
	log       *logger.Logger
	cacheFile string
	workers   int
	progress  func(done, total int)

	mu       sync.Mutex
	dirLocks map[string]*sync.Mutex
}

type Option func(*Service)

func WithLogger(log *logger.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithWorkers bounds the fingerprinting worker pool.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithCacheFileName overrides the hidden per-directory cache filename.
func WithCacheFileName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.cacheFile = name
		}
	}
}

// WithProgress registers a callback invoked after every file in a batch.
func WithProgress(fn func(done, total int)) Option {
	return func(s *Service) { s.progress = fn }
}

func New(opts ...Option) *Service {
	s := &Service{
		log:       logger.GetLogger(),
		cacheFile: cache.DefaultFileName,
		workers:   runtime.NumCPU(),
		dirLocks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// dirLock returns the mutex serializing cache writes for one directory.
// Locking is directory-scoped so batches in different directories still
// run in parallel.
func (s *Service) dirLock(dir string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	lock, ok := s.dirLocks[dir]
	if !ok {
		lock = &sync.Mutex{}
		s.dirLocks[dir] = lock
	}
	return lock
}

// FileError records one file's failure inside a batch.
type FileError struct {
	Filename string
	Err      error
}

// BatchResult summarizes a directory generation pass. Per-file failures
// land in Errors; they never abort the rest of the batch.
type BatchResult struct {
	Total     int
	Generated int
	Skipped   int
	Pruned    int
	Errors    []FileError
}

// GenerateForDirectory fingerprints every audio file in dir with the given
// algorithms, reusing cached vectors whose signature is still valid, and
// persists the cache once at the end. Fingerprinting runs across a bounded
// worker pool; cancellation is honored between files, never mid-transform.
func (s *Service) GenerateForDirectory(ctx context.Context, dir string, algorithms []fingerprint.Algorithm) (*BatchResult, error) {
	if len(algorithms) == 0 {
		algorithms = fingerprint.Algorithms
	}
	for _, a := range algorithms {
		if a.VectorLen() == 0 {
			return nil, fmt.Errorf("%w: %q", fingerprint.ErrUnknownAlgorithm, a)
		}
	}

	lock := s.dirLock(dir)
	lock.Lock()
	defer lock.Unlock()

	c := cache.Load(dir, s.cacheFile)
	pruned := c.Prune(dir)
	if pruned > 0 {
		s.log.Debugf("pruned %d stale cache entries in %s", pruned, dir)
	}

	files, err := listAudioFiles(dir)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Total: len(files), Pruned: pruned}
	var mu sync.Mutex // guards the cache and result during the parallel phase
	done := 0

	g := &errgroup.Group{}
	g.SetLimit(s.workers)

	for _, name := range files {
		if ctx.Err() != nil {
			break
		}
		name := name
		g.Go(func() error {
			generated, err := s.fingerprintFile(&mu, c, dir, name, algorithms)

			mu.Lock()
			switch {
			case err != nil:
				result.Errors = append(result.Errors, FileError{Filename: name, Err: err})
			case generated:
				result.Generated++
			default:
				result.Skipped++
			}
			done++
			if s.progress != nil {
				s.progress(done, result.Total)
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	if err := cache.Save(dir, s.cacheFile, c); err != nil {
		return result, fmt.Errorf("saving cache for %s: %w", dir, err)
	}

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	s.log.Infof("fingerprinted %s: %d generated, %d cached, %d failed",
		dir, result.Generated, result.Skipped, len(result.Errors))
	return result, nil
}

// fingerprintFile computes whatever vectors the file's cache entry is
// missing. Decoding and the FFT-heavy computation run outside the cache
// lock; only the entry snapshot and the final write hold it.
func (s *Service) fingerprintFile(mu *sync.Mutex, c *cache.Cache, dir, name string, algorithms []fingerprint.Algorithm) (bool, error) {
	info, err := os.Stat(filepath.Join(dir, name))
	if err != nil {
		return false, err
	}
	size, mtime := info.Size(), info.ModTime().UnixNano()

	mu.Lock()
	pending := pendingAlgorithms(c, name, size, mtime, algorithms)
	mu.Unlock()
	if len(pending) == 0 {
		return false, nil
	}

	samples, sampleRate, err := audio.ReadWAV(filepath.Join(dir, name))
	if err != nil {
		return false, fmt.Errorf("decoding: %w", err)
	}

	computed := make(map[string][]float64, len(pending))
	for _, algorithm := range pending {
		fp, err := fingerprint.Compute(samples, sampleRate, algorithm)
		if err != nil {
			return false, err
		}
		computed[string(algorithm)] = fp.Vector
	}

	mu.Lock()
	defer mu.Unlock()
	entry, ok := c.Files[name]
	if !ok {
		entry = &cache.Entry{Fingerprints: make(map[string][]float64)}
		c.Files[name] = entry
	}
	if !entry.Valid(size, mtime) {
		entry.FileSize = size
		entry.ModifiedTime = mtime
		entry.Fingerprints = make(map[string][]float64)
	}
	for algorithm, vec := range computed {
		entry.Fingerprints[algorithm] = vec
	}
	return true, nil
}

// pendingAlgorithms returns the algorithms a file still needs. A stale
// signature means everything needs recomputing.
func pendingAlgorithms(c *cache.Cache, name string, size, mtime int64, algorithms []fingerprint.Algorithm) []fingerprint.Algorithm {
	entry, ok := c.Files[name]
	if !ok || !entry.Valid(size, mtime) {
		return algorithms
	}
	var pending []fingerprint.Algorithm
	for _, algorithm := range algorithms {
		if _, exists := entry.Get(algorithm); !exists {
			pending = append(pending, algorithm)
		}
	}
	return pending
}

// ToggleExclusion flips a file's opt-out flag and reports the new state.
// Cached fingerprints are kept, so re-including a file is free.
func (s *Service) ToggleExclusion(dir, filename string) (bool, error) {
	lock := s.dirLock(dir)
	lock.Lock()
	defer lock.Unlock()

	c := cache.Load(dir, s.cacheFile)
	excluded := !c.IsExcluded(filename)
	c.SetExcluded(filename, excluded)
	if err := cache.Save(dir, s.cacheFile, c); err != nil {
		return false, fmt.Errorf("saving cache for %s: %w", dir, err)
	}
	return excluded, nil
}

// DiscoverReferenceDirectories finds every directory under root holding a
// fingerprint cache.
func (s *Service) DiscoverReferenceDirectories(root string) ([]string, error) {
	return collect.DiscoverCacheDirs(root, s.cacheFile)
}

// Suggestion is the identification returned for a target recording.
type Suggestion struct {
	Filename  string
	Score     float64
	Directory string
}

// MatchFile fingerprints the target samples and ranks them against every
// reference directory. Pass the target's own directory as excludeDir so
// the recording cannot match itself; pass "" to search everywhere.
// Returns nil when nothing clears the threshold.
func (s *Service) MatchFile(samples []float64, sampleRate int, algorithm fingerprint.Algorithm, referenceDirs []string, threshold float64, excludeDir string) (*Suggestion, error) {
	if algorithm.VectorLen() == 0 {
		return nil, fmt.Errorf("%w: %q", fingerprint.ErrUnknownAlgorithm, algorithm)
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrBadThreshold, threshold)
	}

	target, err := fingerprint.Compute(samples, sampleRate, algorithm)
	if err != nil {
		return nil, err
	}

	collection := collect.Collect(referenceDirs, algorithm, excludeDir, s.cacheFile)
	s.log.Debugf("matching against %d reference titles across %d directories",
		len(collection), len(referenceDirs))

	best := match.FindBestMatch(target, collection, threshold)
	if best == nil {
		return nil, nil
	}
	return &Suggestion{Filename: best.Filename, Score: best.Score, Directory: best.Directory}, nil
}

// listAudioFiles returns the WAV files directly inside dir, sorted.
// Hidden files (including the cache document) are skipped.
func listAudioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
