package store

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
)

// Delimiter separates segments of a dotted path.
const Delimiter = "."

var (
	// ErrEmptyPath indicates an accessor was called without a path.
	ErrEmptyPath = errors.New("path must be a non-empty string")
	// ErrNilValue indicates Set was called without a value; use Delete instead.
	ErrNilValue = errors.New("value is required, use Delete to clear a path")
)

// Reader exposes read access to a configuration tree.
type Reader interface {
	Get(path string, def any) any
	Has(path string) bool
	Raw() map[string]any
}

// Store holds the merged configuration tree and guards access with a RWMutex.
type Store struct {
	mu sync.RWMutex
	k  *koanf.Koanf
}

// Snapshot is an immutable deep copy of a Store's tree.
type Snapshot struct {
	tree map[string]any
}

// New returns an empty Store.
func New() *Store {
	return &Store{k: newKoanf()}
}

func newKoanf() *koanf.Koanf {
	return koanf.New(Delimiter)
}

// Get returns the value at path, or def when the path does not exist.
// Mapping values are returned as copies.
func (s *Store) Get(path string, def any) any {
	if strings.TrimSpace(path) == "" {
		return def
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.k.Exists(path) {
		return def
	}
	return s.k.Get(path)
}

// Has reports whether path exists.
func (s *Store) Has(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.k.Exists(path)
}

// Set writes value at path, replacing whatever subtree was there.
func (s *Store) Set(path string, value any) error {
	if strings.TrimSpace(path) == "" {
		return ErrEmptyPath
	}
	if value == nil {
		return ErrNilValue
	}
	if m, ok := value.(map[string]any); ok {
		value = maps.Copy(m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.k.Delete(path)
	return s.k.Set(path, value)
}

// Delete removes path and everything below it.
func (s *Store) Delete(path string) {
	if strings.TrimSpace(path) == "" {
		return
	}

	s.mu.Lock()
	s.k.Delete(path)
	s.mu.Unlock()
}

// Assign copies each top-level key of tree into the store, replacing
// existing top-level values without merging below them.
func (s *Store) Assign(tree map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.k.Raw()
	for key, value := range maps.Copy(tree) {
		next[key] = value
	}
	return s.replaceLocked(next)
}

// Clean empties the store.
func (s *Store) Clean() {
	s.mu.Lock()
	s.k = newKoanf()
	s.mu.Unlock()
}

// Raw returns a deep copy of the whole tree.
func (s *Store) Raw() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.k.Raw()
}

// Keys returns every flattened leaf path in the store.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.k.Keys()
}

// Replace swaps the whole tree for a copy of tree.
func (s *Store) Replace(tree map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.replaceLocked(tree)
}

func (s *Store) replaceLocked(tree map[string]any) error {
	if tree == nil {
		tree = map[string]any{}
	}
	next := newKoanf()
	// An empty delimiter keeps keys that contain dots intact.
	if err := next.Load(confmap.Provider(tree, ""), nil); err != nil {
		return err
	}
	s.k = next
	return nil
}

// Snapshot captures a deep copy of the current tree.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{tree: s.Raw()}
}

// Restore replaces the tree with a previously captured snapshot.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.replaceLocked(snap.tree); err != nil {
		s.k = newKoanf()
	}
}

// String returns the string value at path, or "".
func (s *Store) String(path string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.k.String(path)
}

// Int returns the int value at path, or 0.
func (s *Store) Int(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.k.Int(path)
}

// Float64 returns the float64 value at path, or 0.
func (s *Store) Float64(path string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.k.Float64(path)
}

// Bool returns the bool value at path, or false.
func (s *Store) Bool(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.k.Bool(path)
}

// Duration returns the duration at path. Numbers are read as nanoseconds and
// strings with time.ParseDuration.
func (s *Store) Duration(path string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.k.Duration(path)
}

// Strings returns the string slice at path, or an empty slice.
func (s *Store) Strings(path string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.k.Strings(path)
}

// Unmarshal decodes the subtree at path (the whole tree for "") into out.
func (s *Store) Unmarshal(path string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.k.UnmarshalWithConf(path, out, koanf.UnmarshalConf{Tag: "config"})
}
