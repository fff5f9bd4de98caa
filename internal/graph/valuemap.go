package graph

import (
	"fmt"
	"sort"
	"strings"
)

// ValueMap is a node's property map. Typed reads fall back to the supplied
// default when the key is missing or holds a value of another type.
type ValueMap map[string]any

// Bool returns the boolean stored at key, or def.
func (v ValueMap) Bool(key string, def bool) bool {
	if b, ok := v[key].(bool); ok {
		return b
	}
	return def
}

// String returns the string stored at key. ok is false when the key is
// missing or not a string.
func (v ValueMap) String(key string) (s string, ok bool) {
	s, ok = v[key].(string)
	return s, ok
}

// Int returns the integer stored at key, or def. Integral floats are
// accepted since JSON decoders may produce them.
func (v ValueMap) Int(key string, def int64) int64 {
	switch x := v[key].(type) {
	case int:
		return int64(x)
	case int64:
		return x
	case float64:
		if x == float64(int64(x)) {
			return int64(x)
		}
	}
	return def
}

// Strings returns the string list stored at key. A single string is
// returned as a one-element list.
func (v ValueMap) Strings(key string) []string {
	switch x := v[key].(type) {
	case string:
		return []string{x}
	case []string:
		return append([]string(nil), x...)
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil
			}
			out = append(out, s)
		}
		return out
	}
	return nil
}

// Keys returns the property names in sorted order.
func (v ValueMap) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Format renders the value at key as text. Lists are rendered one
// element per line.
func (v ValueMap) Format(key string) string {
	switch x := v[key].(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = fmt.Sprint(e)
		}
		return strings.Join(parts, "\n")
	case []string:
		return strings.Join(x, "\n")
	default:
		return fmt.Sprint(x)
	}
}

// Clone returns a shallow copy. A nil map clones to an empty one.
func (v ValueMap) Clone() ValueMap {
	out := make(ValueMap, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
