package resolver

import (
	"github.com/knadh/koanf/maps"
	"go.uber.org/zap"
)

// FileLoader decodes configuration files.
type FileLoader interface {
	Supports(path string) bool
	Format(path string) string
	Load(path string) (map[string]any, error)
}

// Source records one file's contribution to a load.
type Source struct {
	Path   string `json:"path" yaml:"path"`
	Tier   string `json:"tier" yaml:"tier"`
	Format string `json:"format" yaml:"format"`
}

type cascade struct {
	loader FileLoader
	lookup LookupFunc
	logger *zap.Logger
}

// run applies tiers in order over the discovered files and returns the merged
// tree together with the contributions that produced it.
func (c *cascade) run(files, tiers []string) (map[string]any, []Source, error) {
	result := make(map[string]any)
	var sources []Source

	for _, tier := range tiers {
		acc := make(map[string]any)
		for _, path := range SelectFiles(files, tier) {
			if !c.loader.Supports(path) {
				c.logger.Debug("skipping file without parser", zap.String("path", path), zap.String("tier", tier))
				continue
			}

			tree, err := c.loader.Load(path)
			if err != nil {
				return nil, nil, err
			}
			// Within a tier, later files replace earlier ones per top-level key.
			for key, value := range tree {
				acc[key] = value
			}
			sources = append(sources, Source{Path: path, Tier: tier, Format: c.loader.Format(path)})
		}

		if tier == TierEnv && len(acc) > 0 {
			acc = SubstituteEnv(acc, c.lookup)
		}

		c.logger.Debug("tier applied", zap.String("tier", tier), zap.Int("keys", len(acc)))
		mergeInto(result, acc)
	}

	return result, sources, nil
}

// mergeInto deep-merges a copy of src into dst. Mappings merge recursively,
// anything else replaces the destination value.
func mergeInto(dst, src map[string]any) {
	maps.Merge(maps.Copy(src), dst)
}
