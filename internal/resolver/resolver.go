package resolver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/eugenenazirov/distconf/internal/catalog"
	"github.com/eugenenazirov/distconf/internal/format"
	"github.com/eugenenazirov/distconf/internal/store"
)

// Resolver discovers, merges and serves configuration files.
type Resolver struct {
	fs       afero.Fs
	catalog  *catalog.Catalog
	loader   FileLoader
	store    *store.Store
	logger   *zap.Logger
	lookup   LookupFunc
	pattern  *regexp.Regexp
	registry *format.Registry

	environment      string
	hostname         string
	detectedHostname string
	configDirs       []string
	ignoredDirs      []string
	workDir          string

	tiers     []string
	sources   []Source
	listeners []Listener
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithEnvironment sets the environment tier name.
func WithEnvironment(env string) Option {
	return func(r *Resolver) {
		r.environment = env
	}
}

// WithHostname sets the hostname tier. An empty name keeps the detected hostname.
func WithHostname(name string) Option {
	return func(r *Resolver) {
		r.hostname = name
	}
}

// WithConfigDirs sets the base directories searched by Load.
func WithConfigDirs(dirs ...string) Option {
	return func(r *Resolver) {
		r.configDirs = slices.Clone(dirs)
	}
}

// WithIgnoredDirs replaces the directory names skipped during discovery.
func WithIgnoredDirs(names ...string) Option {
	return func(r *Resolver) {
		r.ignoredDirs = slices.Clone(names)
	}
}

// WithFilePattern overrides the file-name pattern used for discovery.
func WithFilePattern(pattern *regexp.Regexp) Option {
	return func(r *Resolver) {
		r.pattern = pattern
	}
}

// WithFs overrides the filesystem, primarily for tests.
func WithFs(fs afero.Fs) Option {
	return func(r *Resolver) {
		r.fs = fs
	}
}

// WithRegistry overrides the parser registry.
func WithRegistry(registry *format.Registry) Option {
	return func(r *Resolver) {
		r.registry = registry
	}
}

// WithLookupEnv overrides how environment variables are read.
func WithLookupEnv(lookup LookupFunc) Option {
	return func(r *Resolver) {
		r.lookup = lookup
	}
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithWorkDir sets the directory used when no config directory is given.
func WithWorkDir(dir string) Option {
	return func(r *Resolver) {
		r.workDir = dir
	}
}

// New constructs a Resolver with an empty store. Ambient inputs (working
// directory, hostname) are read here once and never during Load.
func New(opts ...Option) (*Resolver, error) {
	r := &Resolver{
		store:       store.New(),
		logger:      zap.NewNop(),
		lookup:      os.LookupEnv,
		environment: DefaultEnvironment,
		ignoredDirs: catalog.DefaultIgnoredDirs(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.lookup == nil {
		r.lookup = os.LookupEnv
	}
	if r.fs == nil {
		r.fs = afero.NewOsFs()
	}
	if r.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		r.workDir = wd
	}
	if len(r.configDirs) == 0 {
		r.configDirs = []string{r.workDir}
	}
	if err := validateDirs(r.configDirs); err != nil {
		return nil, err
	}

	r.detectedHostname = DetectHostname(r.lookup)
	if r.hostname == "" {
		r.hostname = r.detectedHostname
	}

	tiers, err := BuildTiers(r.environment, r.hostname)
	if err != nil {
		return nil, err
	}
	r.tiers = tiers

	r.catalog = catalog.New(r.fs, r.pattern, r.ignoredDirs)
	r.loader = format.NewLoader(r.fs, r.registry)

	return r, nil
}

// Load rebuilds the store from the configured directories, or from dirs when
// given (which also become the configured directories). On failure the
// previous tree is kept, an EventError is published and the error is
// returned; it wraps ErrLoad.
func (r *Resolver) Load(dirs ...string) error {
	if len(dirs) > 0 {
		if err := r.SetConfigDirs(dirs...); err != nil {
			return err
		}
	}

	snapshot := r.store.Snapshot()
	start := time.Now()

	sources, err := r.resolve()
	if err != nil {
		r.store.Restore(snapshot)
		err = fmt.Errorf("%w: %w", ErrLoad, err)
		r.logger.Error("configuration load failed, previous configuration kept",
			zap.Strings("dirs", r.configDirs),
			zap.Error(err),
		)
		r.publish(Event{Kind: EventError, Err: err})
		return err
	}

	r.sources = sources
	r.logger.Info("configuration loaded",
		zap.String("environment", r.environment),
		zap.String("hostname", r.hostname),
		zap.Strings("tiers", r.tiers),
		zap.Int("sources", len(sources)),
		zap.Duration("duration", time.Since(start)),
	)
	r.publish(Event{Kind: EventLoaded, Sources: r.Sources()})
	return nil
}

func (r *Resolver) resolve() ([]Source, error) {
	files, err := r.catalog.Discover(r.configDirs)
	if err != nil {
		return nil, err
	}

	c := &cascade{loader: r.loader, lookup: r.lookup, logger: r.logger}
	tree, sources, err := c.run(files, r.tiers)
	if err != nil {
		return nil, err
	}

	if err := r.store.Replace(tree); err != nil {
		return nil, err
	}
	return sources, nil
}

// Get returns the value at a dotted path, or def when it does not exist.
func (r *Resolver) Get(key string, def any) any {
	return r.store.Get(key, def)
}

// Has reports whether a dotted path exists.
func (r *Resolver) Has(key string) bool {
	return r.store.Has(key)
}

// Set writes value at a dotted path. A nil value or empty key is rejected
// with ErrInvalidArgument.
func (r *Resolver) Set(key string, value any) error {
	if err := r.store.Set(key, value); err != nil {
		if errors.Is(err, store.ErrEmptyPath) || errors.Is(err, store.ErrNilValue) {
			return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		return err
	}
	return nil
}

// Delete removes a dotted path from the store.
func (r *Resolver) Delete(key string) {
	r.store.Delete(key)
}

// Clean empties the store.
func (r *Resolver) Clean() {
	r.store.Clean()
}

// Store returns a deep copy of the whole configuration tree.
func (r *Resolver) Store() map[string]any {
	return r.store.Raw()
}

// Sources returns the contributions of the last successful load, in the
// order they were applied.
func (r *Resolver) Sources() []Source {
	return slices.Clone(r.sources)
}

// Tiers returns the current resolution order.
func (r *Resolver) Tiers() []string {
	return slices.Clone(r.tiers)
}

// Environment returns the environment tier name.
func (r *Resolver) Environment() string {
	return r.environment
}

// SetEnvironment changes the environment tier. The new order applies to the
// next Load.
func (r *Resolver) SetEnvironment(env string) error {
	tiers, err := BuildTiers(env, r.hostname)
	if err != nil {
		return err
	}
	r.environment = env
	r.tiers = tiers
	return nil
}

// ConfigDirs returns the base directories searched by Load.
func (r *Resolver) ConfigDirs() []string {
	return slices.Clone(r.configDirs)
}

// SetConfigDirs replaces the base directories searched by Load.
func (r *Resolver) SetConfigDirs(dirs ...string) error {
	if err := validateDirs(dirs); err != nil {
		return err
	}
	r.configDirs = slices.Clone(dirs)
	return nil
}

// Hostname returns the hostname tier name.
func (r *Resolver) Hostname() string {
	return r.hostname
}

// SetHostname changes the hostname tier. An empty name restores the hostname
// detected when the Resolver was created.
func (r *Resolver) SetHostname(name string) {
	if name == "" {
		name = r.detectedHostname
	}
	tiers, err := BuildTiers(r.environment, name)
	if err != nil {
		// environment was validated when it was set
		return
	}
	r.hostname = name
	r.tiers = tiers
}

// ImportFile loads every file named file below dir (the working directory
// when dir is empty) and adds it to the store, under namespace when given or
// key by key at the top level otherwise. Failures are returned as-is; the
// store is not rolled back.
func (r *Resolver) ImportFile(file, dir, namespace string) error {
	if strings.TrimSpace(file) == "" {
		return fmt.Errorf("%w: file must be a non-empty string", ErrInvalidArgument)
	}
	if dir == "" {
		dir = r.workDir
	}
	if sub := filepath.Dir(file); sub != "." {
		dir = filepath.Join(dir, sub)
	}
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(filepath.Base(file)) + `$`)

	files, err := r.catalog.DiscoverWith(dir, pattern)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}

	tree := make(map[string]any)
	for _, path := range files {
		if !r.loader.Supports(path) {
			continue
		}
		content, err := r.loader.Load(path)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLoad, err)
		}
		for key, value := range content {
			tree[key] = value
		}
	}

	r.logger.Debug("imported configuration file",
		zap.String("file", file),
		zap.String("dir", dir),
		zap.String("namespace", namespace),
		zap.Int("matches", len(files)),
	)

	if namespace != "" {
		return r.Set(namespace, tree)
	}
	return r.store.Assign(tree)
}

// String returns the string value at key, or "".
func (r *Resolver) String(key string) string { return r.store.String(key) }

// Int returns the int value at key, or 0.
func (r *Resolver) Int(key string) int { return r.store.Int(key) }

// Float64 returns the float64 value at key, or 0.
func (r *Resolver) Float64(key string) float64 { return r.store.Float64(key) }

// Bool returns the bool value at key, or false.
func (r *Resolver) Bool(key string) bool { return r.store.Bool(key) }

// Duration returns the duration value at key, or 0.
func (r *Resolver) Duration(key string) time.Duration { return r.store.Duration(key) }

// Strings returns the string slice at key, or an empty slice.
func (r *Resolver) Strings(key string) []string { return r.store.Strings(key) }

// Unmarshal decodes the subtree at key into out using `config` struct tags.
func (r *Resolver) Unmarshal(key string, out any) error { return r.store.Unmarshal(key, out) }

func validateDirs(dirs []string) error {
	if len(dirs) == 0 {
		return fmt.Errorf("%w: at least one config directory is required", ErrInvalidArgument)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("%w: config directory must be a non-empty string", ErrInvalidArgument)
		}
	}
	return nil
}
