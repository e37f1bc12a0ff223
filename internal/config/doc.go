// Package config loads the distconf binary's own settings from multiple
// sources (YAML file, environment variables, CLI flags) with precedence:
// CLI flags > YAML config > Environment variables > Defaults. Environment
// and hostname are resolved here once and handed to the resolver explicitly.
package config
