// Package cache persists per-directory fingerprint data in a single hidden
// JSON document alongside the audio files it describes.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"

	"takematch/internal/fingerprint"
	"takematch/pkg/logger"
)

const (
	// DefaultFileName is the hidden cache document kept in each directory.
	DefaultFileName = ".audio_fingerprints.json"

	// CurrentVersion of the on-disk schema. Version 1 stored one unnamed
	// vector per file; version 2 keys vectors by algorithm.
	CurrentVersion = 2
)

// Entry holds everything cached about one audio file. FileSize and
// ModifiedTime form the staleness signature: cached vectors are trusted
// only while both still match the file on disk.
type Entry struct {
	FileSize     int64                `json:"file_size"`
	ModifiedTime int64                `json:"modified_time"`
	Excluded     bool                 `json:"excluded"`
	Fingerprints map[string][]float64 `json:"fingerprints"`

	// Fingerprint carries the legacy (version 1) single-vector field so a
	// pre-migration document still decodes. Never written back.
	Fingerprint []float64 `json:"fingerprint,omitempty"`
}

// Valid reports whether the entry's stored signature matches the file's
// current size and modification time.
func (e *Entry) Valid(fileSize, modifiedTime int64) bool {
	return e.FileSize == fileSize && e.ModifiedTime == modifiedTime
}

// Get returns the cached fingerprint for an algorithm, if present.
func (e *Entry) Get(algorithm fingerprint.Algorithm) (fingerprint.Fingerprint, bool) {
	vec, ok := e.Fingerprints[string(algorithm)]
	if !ok || len(vec) != algorithm.VectorLen() {
		return fingerprint.Fingerprint{}, false
	}
	return fingerprint.Fingerprint{Algorithm: algorithm, Vector: vec}, true
}

// Cache is one directory's fingerprint store.
type Cache struct {
	Version int               `json:"version"`
	Files   map[string]*Entry `json:"files"`
}

// New returns an empty cache at the current schema version.
func New() *Cache {
	return &Cache{Version: CurrentVersion, Files: make(map[string]*Entry)}
}

// Load reads the cache document from dir. A missing or malformed file
// yields an empty cache: corruption is recovered silently, never surfaced.
// Legacy documents are migrated in memory; the upgraded schema reaches disk
// on the next Save.
func Load(dir, fileName string) *Cache {
	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		return New()
	}

	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		logger.Debugf("cache in %s is corrupt, starting fresh: %v", dir, err)
		return New()
	}
	if c.Files == nil {
		c.Files = make(map[string]*Entry)
	}
	return Migrate(&c)
}

// Migrate rewrites a legacy single-fingerprint cache into the
// multi-algorithm schema: each bare vector becomes fingerprints["spectral"]
// and the version is bumped. The transform is pure and idempotent;
// migrating an already-current cache is a no-op.
func Migrate(c *Cache) *Cache {
	if c.Version >= CurrentVersion {
		return c
	}
	for _, entry := range c.Files {
		if entry.Fingerprints == nil {
			entry.Fingerprints = make(map[string][]float64)
		}
		if len(entry.Fingerprint) > 0 {
			if _, exists := entry.Fingerprints[string(fingerprint.Spectral)]; !exists {
				entry.Fingerprints[string(fingerprint.Spectral)] = entry.Fingerprint
			}
			entry.Fingerprint = nil
		}
	}
	c.Version = CurrentVersion
	return c
}

// Save writes the cache document atomically: marshal to a temp file in the
// same directory, then rename over the final path, so a crash can never
// leave a half-written cache behind.
func Save(dir, fileName string, c *Cache) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(dir, fileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Ensure makes sure the named file's entry holds a current fingerprint for
// every requested algorithm, computing the missing ones from the supplied
// samples. A stale signature (file changed on disk) clears all cached
// vectors first; the exclusion flag survives. Callers batch many Ensure
// calls before a single Save.
func (c *Cache) Ensure(dir, name string, samples []float64, sampleRate int, algorithms []fingerprint.Algorithm) (*Entry, error) {
	info, err := os.Stat(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	size, mtime := info.Size(), info.ModTime().UnixNano()

	entry, ok := c.Files[name]
	if !ok {
		entry = &Entry{Fingerprints: make(map[string][]float64)}
		c.Files[name] = entry
	}
	if !entry.Valid(size, mtime) {
		entry.FileSize = size
		entry.ModifiedTime = mtime
		entry.Fingerprints = make(map[string][]float64)
	}

	for _, algorithm := range algorithms {
		if _, exists := entry.Get(algorithm); exists {
			continue
		}
		fp, err := fingerprint.Compute(samples, sampleRate, algorithm)
		if err != nil {
			return nil, err
		}
		entry.Fingerprints[string(algorithm)] = fp.Vector
	}
	return entry, nil
}

// SetExcluded flags or unflags a file, creating a bare entry when the file
// has never been fingerprinted. Already-computed vectors are kept either
// way, so re-inclusion costs nothing.
func (c *Cache) SetExcluded(name string, excluded bool) {
	entry, ok := c.Files[name]
	if !ok {
		entry = &Entry{Fingerprints: make(map[string][]float64)}
		c.Files[name] = entry
	}
	entry.Excluded = excluded
}

// IsExcluded reports whether a file has been opted out of matching.
func (c *Cache) IsExcluded(name string) bool {
	entry, ok := c.Files[name]
	return ok && entry.Excluded
}

// Prune drops entries whose file no longer exists in dir and reports how
// many were removed. Run during full-directory regeneration passes.
func (c *Cache) Prune(dir string) int {
	removed := 0
	for name := range c.Files {
		if _, err := os.Stat(filepath.Join(dir, name)); os.IsNotExist(err) {
			delete(c.Files, name)
			removed++
		}
	}
	return removed
}
