package resolver

import (
	"path/filepath"
	"regexp"
)

// SelectFiles returns the files whose base name contains tier as a
// dot-delimited segment, compared case-insensitively. Input order is kept.
// A file naming several tiers is selected by each of them.
func SelectFiles(files []string, tier string) []string {
	if tier == "" {
		return nil
	}

	pattern := regexp.MustCompile(`(?i)(^|\.)` + regexp.QuoteMeta(tier) + `\.`)

	var out []string
	for _, file := range files {
		if pattern.MatchString(filepath.Base(file)) {
			out = append(out, file)
		}
	}
	return out
}
