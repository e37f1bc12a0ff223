package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hjson/hjson-go/v4"
	"github.com/knadh/koanf/maps"
	"github.com/spf13/afero"
	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

// ErrNotMapping is returned when a document's top level is not a key/value mapping.
var ErrNotMapping = errors.New("top-level value must be a mapping")

// ParseError reports a configuration file that could not be read or decoded.
type ParseError struct {
	Path   string
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s (%s): %v", e.Path, e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parser decodes a document into a key/value tree.
type Parser interface {
	Parse(data []byte) (map[string]any, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(data []byte) (map[string]any, error)

// Parse implements Parser.
func (f ParserFunc) Parse(data []byte) (map[string]any, error) {
	return f(data)
}

// Registry maps lower-case file extensions (without the dot) to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// DefaultRegistry returns a registry with json, json5, hjson, yaml and yml parsers.
// Files with a js extension match the naming convention but have no parser.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("json", ParserFunc(parseJSON))
	r.Register("json5", ParserFunc(parseJSON5))
	r.Register("hjson", ParserFunc(parseHJSON))
	r.Register("yaml", ParserFunc(parseYAML))
	r.Register("yml", ParserFunc(parseYAML))
	return r
}

// Register binds a parser to an extension, replacing any previous binding.
func (r *Registry) Register(ext string, p Parser) {
	r.parsers[normalizeExt(ext)] = p
}

// Lookup returns the parser registered for the path's extension.
func (r *Registry) Lookup(path string) (Parser, string, bool) {
	ext := normalizeExt(filepath.Ext(path))
	p, ok := r.parsers[ext]
	return p, ext, ok
}

// Supports reports whether a parser is registered for the path's extension.
func (r *Registry) Supports(path string) bool {
	_, _, ok := r.Lookup(path)
	return ok
}

// Loader reads files from a filesystem and decodes them through a Registry.
type Loader struct {
	fs       afero.Fs
	registry *Registry
}

// NewLoader creates a Loader. Nil arguments fall back to the OS filesystem and
// DefaultRegistry.
func NewLoader(fs afero.Fs, registry *Registry) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Loader{fs: fs, registry: registry}
}

// Supports reports whether the loader can decode the file at path.
func (l *Loader) Supports(path string) bool {
	return l.registry.Supports(path)
}

// Format returns the registered extension for path, or "" when unsupported.
func (l *Loader) Format(path string) string {
	_, ext, ok := l.registry.Lookup(path)
	if !ok {
		return ""
	}
	return ext
}

// Load reads and decodes the file at path. Callers are expected to check
// Supports first; an unsupported extension yields a ParseError.
func (l *Loader) Load(path string) (map[string]any, error) {
	p, ext, ok := l.registry.Lookup(path)
	if !ok {
		return nil, &ParseError{Path: path, Format: ext, Err: fmt.Errorf("no parser registered for %q", ext)}
	}

	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, &ParseError{Path: path, Format: ext, Err: err}
	}

	tree, err := p.Parse(data)
	if err != nil {
		return nil, &ParseError{Path: path, Format: ext, Err: err}
	}
	if tree == nil {
		tree = map[string]any{}
	}
	return tree, nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func parseJSON(data []byte) (map[string]any, error) {
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return asMapping(out)
}

func parseJSON5(data []byte) (map[string]any, error) {
	var out any
	if err := json5.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return asMapping(out)
}

func parseHJSON(data []byte) (map[string]any, error) {
	var out any
	if err := hjson.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return asMapping(out)
}

func parseYAML(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	var out any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return asMapping(out)
}

// asMapping enforces a mapping at the top level and normalises nested
// map[any]any values (non-string YAML keys) to map[string]any.
func asMapping(v any) (map[string]any, error) {
	switch m := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		maps.IntfaceKeysToStrings(m)
		return m, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		maps.IntfaceKeysToStrings(out)
		return out, nil
	default:
		return nil, fmt.Errorf("%w, got %T", ErrNotMapping, v)
	}
}
