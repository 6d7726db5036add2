package rules

// rawdoc.go holds small type-assertion helpers over the generic
// map[string]any / []any values gopkg.in/yaml.v3 hands back when decoding a
// rules document without a fixed struct shape. Pass 1 needs this dynamic
// shape because the same top-level item can be a macro, list, rule,
// required_engine_version or required_plugin_versions entry, and because
// rule fields like "fields"/"comps"/"values" are themselves scalar-or-
// sequence polymorphic.

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func getString(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func getStringDefault(m map[string]any, key, def string) string {
	if s, ok := getString(m, key); ok {
		return s
	}
	return def
}

func getBool(m map[string]any, key string, def bool) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func getNumber(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func getSlice(m map[string]any, key string) ([]any, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false
	}
	s, ok := v.([]any)
	return s, ok
}

func getMapSlice(m map[string]any, key string) ([]map[string]any, bool) {
	raw, ok := getSlice(m, key)
	if !ok {
		return nil, false
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		mi, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		out = append(out, mi)
	}
	return out, true
}

// toStringSlice converts a generic YAML sequence into []string, erroring if
// any element is not a string.
func toStringSlice(raw []any) ([]string, bool) {
	out := make([]string, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}
