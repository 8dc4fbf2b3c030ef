// diff.go computes key-level differences between two configurations,
// used by the watcher to report exactly what an edit changed.
package botconfig

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Diff returns the key-level changes between two configs, sorted by
// key. Keys are dotted JSON paths using the file's own field names
// (e.g. "COOLDOWN.RATE", "MARKOV.ENABLE_MARKOV_TRAINING").
func Diff(old, new *Config) []Change {
	oldFlat := flatten(old)
	newFlat := flatten(new)

	keys := make(map[string]struct{}, len(oldFlat)+len(newFlat))
	for k := range oldFlat {
		keys[k] = struct{}{}
	}
	for k := range newFlat {
		keys[k] = struct{}{}
	}

	var changes []Change
	for k := range keys {
		oldVal, newVal := oldFlat[k], newFlat[k]
		if oldVal != newVal {
			changes = append(changes, Change{Key: k, Old: oldVal, New: newVal})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Key < changes[j].Key })
	return changes
}

// flatten converts a Config into a map of dotted JSON paths to
// stringified values, via a JSON round trip so the keys match the
// config file exactly.
func flatten(cfg *Config) map[string]string {
	data, err := json.Marshal(cfg)
	if err != nil {
		// Config contains only marshalable types; this cannot happen
		// outside of a programming error.
		panic(fmt.Sprintf("botconfig: failed to marshal config: %v", err))
	}

	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		panic(fmt.Sprintf("botconfig: failed to re-parse config: %v", err))
	}

	flat := make(map[string]string)
	flattenInto(flat, "", tree)
	return flat
}

// flattenInto walks a decoded JSON tree, writing leaf values into flat
// under dotted key paths. Arrays are treated as leaves: a changed
// element reports the whole list, which reads better for ID lists
// than per-index keys.
func flattenInto(flat map[string]string, prefix string, node any) {
	obj, ok := node.(map[string]any)
	if !ok {
		flat[prefix] = stringify(node)
		return
	}

	for key, value := range obj {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		flattenInto(flat, path, value)
	}
}

// stringify renders a leaf value for display. JSON numbers decode as
// float64; integral values are printed without the trailing ".0" so a
// cooldown of 30 does not display as "30.000000".
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = stringify(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", val)
	}
}
