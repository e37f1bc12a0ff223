// Package format decodes configuration documents (JSON, JSON5, HJSON, YAML)
// into key/value trees through a static extension registry.
package format
