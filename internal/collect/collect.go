// Package collect aggregates cached fingerprints across reference
// directories for matching.
package collect

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"takematch/internal/cache"
	"takematch/internal/fingerprint"
)

// Source is one reference fingerprint together with the directory it was
// collected from.
type Source struct {
	Dir         string
	Fingerprint fingerprint.Fingerprint
}

// Collection maps a filename to every reference fingerprint known for it,
// restricted to a single algorithm.
type Collection map[string][]Source

// DiscoverCacheDirs walks root recursively and returns every directory
// containing a cache document, sorted for deterministic downstream
// ordering. root itself counts.
func DiscoverCacheDirs(root, cacheFileName string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if _, statErr := os.Stat(filepath.Join(path, cacheFileName)); statErr == nil {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(dirs)
	return dirs, nil
}

// sameDir compares two directory paths by absolute form, so a relative
// reference directory still matches an absolute exclude directory.
func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// Collect gathers, for every directory except excludeDir, each
// non-excluded file entry holding a fingerprint for the requested
// algorithm. Filenames are taken as-is; no normalization happens here.
// Pass excludeDir="" to exclude nothing.
func Collect(dirs []string, algorithm fingerprint.Algorithm, excludeDir, cacheFileName string) Collection {
	collection := make(Collection)

	sorted := make([]string, len(dirs))
	copy(sorted, dirs)
	sort.Strings(sorted)

	for _, dir := range sorted {
		if excludeDir != "" && sameDir(dir, excludeDir) {
			continue
		}
		c := cache.Load(dir, cacheFileName)
		names := make([]string, 0, len(c.Files))
		for name := range c.Files {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			entry := c.Files[name]
			if entry.Excluded {
				continue
			}
			fp, ok := entry.Get(algorithm)
			if !ok {
				continue
			}
			collection[name] = append(collection[name], Source{Dir: dir, Fingerprint: fp})
		}
	}
	return collection
}
