// Package catalog discovers configuration files below one or more base
// directories by file-name convention, skipping ignored directory names.
package catalog
