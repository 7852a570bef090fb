package outfmt

import (
	"encoding/json"
	"reflect"
)

// wrapList puts top-level slices under "items" so list output always has the
// same shape. A nil slice becomes an empty list.
func wrapList(v any) any {
	items, ok := listValue(v)
	if !ok {
		return v
	}
	return map[string]any{"items": items}
}

// listValue returns v as a slice value when it is one. Byte slices and raw
// JSON are not lists.
func listValue(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	switch v.(type) {
	case []byte, json.RawMessage:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return []any{}, true
	}
	return rv.Interface(), true
}

// splitList returns the elements of a list value, or v alone.
func splitList(v any) []any {
	items, ok := listValue(v)
	if !ok {
		return []any{v}
	}
	if list, ok := items.([]any); ok {
		return list
	}
	rv := reflect.ValueOf(items)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
