// Package payload reshapes flat caller input into the nested element
// graph expected by the remote schema.
package payload

import (
	"sort"
	"strings"
)

// Delimiter separates path segments in a flat field name.
const Delimiter = "__"

// Reconstruct builds a nested map from flat, delimiter-separated keys.
// Only keys listed in allowed are considered. Nil values are skipped so the
// corresponding element is absent rather than empty. When one allowed path
// is a prefix of another, the nested path wins whatever the order of allowed.
func Reconstruct(flat map[string]any, allowed []string) map[string]any {
	result := make(map[string]any)
	for _, field := range allowed {
		value, ok := flat[field]
		if !ok || value == nil {
			continue
		}
		place(result, strings.Split(field, Delimiter), value)
	}
	return result
}

func place(root map[string]any, parts []string, value any) {
	current := root
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			// Nested field wins over a scalar on the same segment.
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	leaf := parts[len(parts)-1]
	if _, nested := current[leaf].(map[string]any); nested {
		return
	}
	current[leaf] = value
}

// Flatten is the inverse of Reconstruct: nested maps become delimiter-joined
// keys under prefix. Non-map values are kept as leaves.
func Flatten(prefix string, nested map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, prefix, nested)
	return out
}

func flattenInto(out map[string]any, prefix string, nested map[string]any) {
	for key, value := range nested {
		path := key
		if prefix != "" {
			path = prefix + Delimiter + key
		}
		if child, ok := value.(map[string]any); ok {
			flattenInto(out, path, child)
			continue
		}
		out[path] = value
	}
}

// Paths lists the leaf paths present in nested, sorted.
func Paths(nested map[string]any) []string {
	flat := Flatten("", nested)
	paths := make([]string, 0, len(flat))
	for p := range flat {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
