package boundary

// Coercion helpers for values that crossed a codec. CBOR and JSON decode
// numbers and maps into a handful of concrete types that differ from what
// an in-process pipe carries; these helpers accept both.

// AsString returns v as a string, or "" if it is not one.
func AsString(v any) string {
	s, _ := v.(string)
	return s
}

// AsBool returns v as a bool, or false if it is not one.
func AsBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// AsInt64 converts any numeric wire type to int64.
func AsInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case uint32:
		return int64(n)
	case uint:
		return int64(n)
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	}
	return 0
}

// AsBytes returns v as a byte slice. A string is returned as its bytes;
// anything else yields nil.
func AsBytes(v any) []byte {
	switch b := v.(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	}
	return nil
}

// AsMap returns v as a string-keyed map, or nil.
func AsMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// AsSlice returns v as a generic slice, or nil.
func AsSlice(v any) []any {
	s, _ := v.([]any)
	return s
}
