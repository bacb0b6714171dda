package store

import (
	"fmt"
	"sort"
	"strings"
)

// splitPath validates a slash-separated store path and returns its
// segments. The empty path (or "/") addresses the root.
func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, "/")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("Malformed store path {%s}", path)
		}
	}
	return parts, nil
}

func joinPath(parts []string) string {
	return strings.Join(parts, "/")
}

// affects reports whether a write at writeParts changes the subtree
// visible from subParts: true when either path is an ancestor of the
// other (or they are equal).
func affects(subParts, writeParts []string) bool {
	n := len(subParts)
	if len(writeParts) < n {
		n = len(writeParts)
	}
	for i := 0; i < n; i++ {
		if subParts[i] != writeParts[i] {
			return false
		}
	}
	return true
}

// deepCopy clones a value tree so snapshots handed to subscribers never
// alias the store's own tree.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, c := range t {
			out[k] = deepCopy(c)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, c := range t {
			out[i] = deepCopy(c)
		}
		return out
	default:
		return v
	}
}

// resolveValue clones a written value, substituting the ServerTimestamp
// sentinel with the store clock's time and collapsing empty maps to nil.
func resolveValue(v any, nowMillis int64) any {
	switch t := v.(type) {
	case serverTimestamp:
		return nowMillis
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, c := range t {
			if r := resolveValue(c, nowMillis); r != nil {
				out[k] = r
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, c := range t {
			out[i] = resolveValue(c, nowMillis)
		}
		return out
	default:
		return v
	}
}

// Flatten decomposes a subtree write into its leaf writes, the unit the
// persistence layer stores. A nil value yields a single nil write so the
// persister can clear the prefix.
func Flatten(path string, value any) []Write {
	m, ok := value.(map[string]any)
	if !ok {
		return []Write{{Path: path, Value: value}}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []Write
	for _, k := range keys {
		child := path + "/" + k
		if path == "" {
			child = k
		}
		out = append(out, Flatten(child, m[k])...)
	}
	if out == nil {
		out = []Write{{Path: path, Value: nil}}
	}
	return out
}
