package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/afero"
)

// DefaultPattern matches files following the <name>.<tier>.config.<ext> convention.
var DefaultPattern = regexp.MustCompile(`(?i)\.config\.(json|json5|hjson|yaml|yml|js)$`)

var defaultIgnoredDirs = []string{"node_modules", "coverage", "test", "tests", "__test__", "__tests__"}

// DefaultIgnoredDirs returns a copy of the directory names skipped during discovery.
func DefaultIgnoredDirs() []string {
	out := make([]string, len(defaultIgnoredDirs))
	copy(out, defaultIgnoredDirs)
	return out
}

// DiscoveryError reports an I/O failure while walking a base directory.
type DiscoveryError struct {
	Dir string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover config files in %s: %v", e.Dir, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Catalog lists candidate configuration files on a filesystem.
type Catalog struct {
	fs      afero.Fs
	pattern *regexp.Regexp
	ignored map[string]struct{}
}

// New creates a Catalog. A nil pattern falls back to DefaultPattern.
func New(fs afero.Fs, pattern *regexp.Regexp, ignoredDirs []string) *Catalog {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if pattern == nil {
		pattern = DefaultPattern
	}

	ignored := make(map[string]struct{}, len(ignoredDirs))
	for _, name := range ignoredDirs {
		ignored[name] = struct{}{}
	}

	return &Catalog{fs: fs, pattern: pattern, ignored: ignored}
}

// Discover walks every base directory in order and returns the absolute paths
// of matching files. Results from multiple directories are concatenated in
// input order; within a directory the walk is lexical.
func (c *Catalog) Discover(baseDirs []string) ([]string, error) {
	var out []string
	for _, dir := range baseDirs {
		files, err := c.discoverDir(dir)
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	return out, nil
}

// DiscoverWith walks a single directory with an explicit pattern and without
// skipping ignored directories.
func (c *Catalog) DiscoverWith(dir string, pattern *regexp.Regexp) ([]string, error) {
	scoped := &Catalog{fs: c.fs, pattern: pattern}
	return scoped.discoverDir(dir)
}

func (c *Catalog) discoverDir(dir string) ([]string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, &DiscoveryError{Dir: dir, Err: err}
	}

	var files []string
	walkErr := afero.Walk(c.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && c.isIgnored(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if c.pattern.MatchString(info.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, &DiscoveryError{Dir: root, Err: walkErr}
	}

	return files, nil
}

func (c *Catalog) isIgnored(name string) bool {
	_, ok := c.ignored[name]
	return ok
}
