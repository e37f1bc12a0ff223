// Package resolver builds an application's configuration from files found by
// naming convention (<name>.<tier>.config.<ext>). Files are applied tier by
// tier in the fixed order default, <environment>, <hostname>, local, env;
// later tiers override earlier ones key by key and nested mappings are merged
// recursively. Leaves of the env tier name environment variables whose values
// are substituted at load time.
//
// A failed Load restores the tree that was active before it started.
// Resolver does not lock around Load; callers must not run loads concurrently
// on one instance.
package resolver
