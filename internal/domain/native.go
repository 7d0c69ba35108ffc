package domain

import (
	"fmt"
	"math"
	"sort"
)

// FromNative converts a plain Go value into a Value.
//
// Supported inputs are strings, booleans, every integer and float width,
// []any, []string, map[string]any and map[string]string, nested to at
// most MaxDepth levels. Keys of Go maps are sorted so the result is
// deterministic. Anything else is rejected with ErrUnsupportedValueType.
func FromNative(v any) (Value, error) {
	return fromNative(v, 0)
}

func fromNative(v any, depth int) (Value, error) {
	switch v.(type) {
	case []string, []any, map[string]string, map[string]any:
		if depth >= MaxDepth {
			return nil, fmt.Errorf("value nested deeper than %d levels", MaxDepth)
		}
	}

	switch tv := v.(type) {
	case Value:
		return tv, nil
	case string:
		return String(tv), nil
	case bool:
		return Boolean(tv), nil
	case int:
		return Integer(tv), nil
	case int8:
		return Integer(tv), nil
	case int16:
		return Integer(tv), nil
	case int32:
		return Integer(tv), nil
	case int64:
		return Integer(tv), nil
	case uint:
		return fromUnsigned(uint64(tv))
	case uint8:
		return Integer(tv), nil
	case uint16:
		return Integer(tv), nil
	case uint32:
		return Integer(tv), nil
	case uint64:
		return fromUnsigned(tv)
	case float32:
		return Double(tv), nil
	case float64:
		return Double(tv), nil
	case []string:
		out := make(Array, len(tv))
		for i, s := range tv {
			out[i] = String(s)
		}
		return out, nil
	case []any:
		out := make(Array, 0, len(tv))
		for i, e := range tv {
			ev, err := fromNative(e, depth+1)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, ev)
		}
		return out, nil
	case map[string]string:
		out := NewMap()
		for _, k := range sortedKeys(tv) {
			out.Set(k, String(tv[k]))
		}
		return out, nil
	case map[string]any:
		out := NewMap()
		for _, k := range sortedKeys(tv) {
			ev, err := fromNative(tv[k], depth+1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out.Set(k, ev)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValueType, v)
	}
}

func fromUnsigned(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("%w: %d overflows integer", ErrUnsupportedValueType, u)
	}
	return Integer(int64(u)), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToNative converts a Value back into plain Go values: string, int64, bool,
// float64, []any and map[string]any.
func ToNative(v Value) any {
	switch tv := v.(type) {
	case nil:
		return nil
	case String:
		return string(tv)
	case Integer:
		return int64(tv)
	case Boolean:
		return bool(tv)
	case Double:
		return float64(tv)
	case Array:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = ToNative(e)
		}
		return out
	case *Map:
		out := make(map[string]any, tv.Len())
		tv.Range(func(k string, e Value) bool {
			out[k] = ToNative(e)
			return true
		})
		return out
	default:
		panic(fmt.Sprintf("domain: unhandled value type %T", v))
	}
}
