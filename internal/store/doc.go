// Package store holds a merged configuration tree and exposes dotted-path
// accessors over it. Reads are safe for concurrent use with Replace.
package store
