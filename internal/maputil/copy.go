// Package maputil provides deep-copy and lookup helpers for decoded JSON
// documents, so artifacts handed out in snapshots never alias registry state.
package maputil

// DeepCopyMap performs a deep copy of a decoded JSON object.
func DeepCopyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}

	dst := make(map[string]any, len(src))

	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}

	return dst
}

// DeepCopySlice performs a deep copy of a decoded JSON array.
func DeepCopySlice(src []any) []any {
	if src == nil {
		return nil
	}

	dst := make([]any, len(src))

	for i, v := range src {
		dst[i] = deepCopyValue(v)
	}

	return dst
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return DeepCopyMap(val)
	case []any:
		return DeepCopySlice(val)
	default:
		return v
	}
}

// Lookup walks nested objects along keys and returns the value found at the
// end of the path. It reports false when any intermediate value is missing or
// is not an object.
func Lookup(doc map[string]any, keys ...string) (any, bool) {
	var cur any = doc

	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}

		cur, ok = m[k]
		if !ok {
			return nil, false
		}
	}

	return cur, true
}

// LookupString is Lookup restricted to string leaves.
func LookupString(doc map[string]any, keys ...string) (string, bool) {
	v, ok := Lookup(doc, keys...)
	if !ok {
		return "", false
	}

	s, ok := v.(string)

	return s, ok
}
