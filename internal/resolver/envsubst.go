package resolver

import (
	"slices"
	"strconv"

	"github.com/knadh/koanf/maps"
	"github.com/spf13/cast"

	"github.com/eugenenazirov/distconf/internal/store"
)

// LookupFunc resolves an environment variable, reporting whether it is set.
type LookupFunc func(name string) (string, bool)

// SubstituteEnv reads every leaf of tree as the name of an environment
// variable. Leaves whose variable is set and non-empty take its value; all
// other leaves are dropped. List elements are leaves too: surviving elements
// keep their relative order and a list with no survivors is dropped. The
// input tree is not modified.
func SubstituteEnv(tree map[string]any, lookup LookupFunc) map[string]any {
	lists := make(map[string]struct{})
	expanded, _ := expandLists(tree, "", lists).(map[string]any)

	flat, _ := maps.Flatten(expanded, nil, store.Delimiter)

	kept := make(map[string]any, len(flat))
	for path, leaf := range flat {
		name, err := cast.ToStringE(leaf)
		if err != nil || name == "" {
			continue
		}
		if value, ok := lookup(name); ok && value != "" {
			kept[path] = value
		}
	}

	out, _ := collapseLists(maps.Unflatten(kept, store.Delimiter), "", lists).(map[string]any)
	return out
}

// expandLists copies v with every []any replaced by a map keyed by element
// index, recording the paths of the replaced lists.
func expandLists(v any, path string, lists map[string]struct{}) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, child := range t {
			out[key] = expandLists(child, joinPath(path, key), lists)
		}
		return out
	case []any:
		lists[path] = struct{}{}
		out := make(map[string]any, len(t))
		for i, child := range t {
			key := strconv.Itoa(i)
			out[key] = expandLists(child, joinPath(path, key), lists)
		}
		return out
	default:
		return v
	}
}

// collapseLists turns the index-keyed maps at recorded list paths back into
// lists ordered by index.
func collapseLists(v any, path string, lists map[string]struct{}) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for key, child := range m {
		m[key] = collapseLists(child, joinPath(path, key), lists)
	}
	if _, isList := lists[path]; !isList {
		return m
	}

	indexes := make([]int, 0, len(m))
	for key := range m {
		if i, err := strconv.Atoi(key); err == nil {
			indexes = append(indexes, i)
		}
	}
	slices.Sort(indexes)

	out := make([]any, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, m[strconv.Itoa(i)])
	}
	return out
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + store.Delimiter + key
}
