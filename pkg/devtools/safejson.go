package devtools

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
)

// Circular replaces values that refer back to one of their ancestors.
const Circular = "[CIRCULAR]"

var marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()

// safeMarshal encodes v as JSON without failing on cycles or unencodable values:
// cycles become Circular, functions and channels become a type placeholder.
func safeMarshal(v any) ([]byte, error) {
	return json.Marshal(sanitize(reflect.ValueOf(v), make(map[uintptr]bool)))
}

func sanitize(v reflect.Value, ancestors map[uintptr]bool) any {
	if !v.IsValid() {
		return nil
	}
	if v.Kind() != reflect.Interface && v.Type().Implements(marshalerType) {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			return nil
		}
		return v.Interface()
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return sanitize(v.Elem(), ancestors)

	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return visit(v.Pointer(), ancestors, func() any { return sanitize(v.Elem(), ancestors) })

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		return visit(v.Pointer(), ancestors, func() any {
			out := make(map[string]any, v.Len())
			iter := v.MapRange()
			for iter.Next() {
				out[fmt.Sprint(iter.Key().Interface())] = sanitize(iter.Value(), ancestors)
			}
			return out
		})

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes()
		}
		if v.Len() == 0 {
			return []any{}
		}
		return visit(v.Pointer(), ancestors, func() any { return sanitizeList(v, ancestors) })

	case reflect.Array:
		return sanitizeList(v, ancestors)

	case reflect.Struct:
		return sanitizeStruct(v, ancestors)

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return "[" + v.Type().String() + "]"

	case reflect.Complex64, reflect.Complex128:
		return fmt.Sprint(v.Complex())

	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Sprint(f)
		}
		return f

	default:
		return v.Interface()
	}
}

// visit guards a reference against cycles along the current path only, so a value
// shared by two siblings is encoded twice rather than flagged.
func visit(ptr uintptr, ancestors map[uintptr]bool, encode func() any) any {
	if ancestors[ptr] {
		return Circular
	}
	ancestors[ptr] = true
	defer delete(ancestors, ptr)
	return encode()
}

func sanitizeList(v reflect.Value, ancestors map[uintptr]bool) []any {
	out := make([]any, v.Len())
	for i := range out {
		out[i] = sanitize(v.Index(i), ancestors)
	}
	return out
}

func sanitizeStruct(v reflect.Value, ancestors map[uintptr]bool) map[string]any {
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		opts := strings.Split(tag, ",")
		name := f.Name
		if opts[0] != "" {
			name = opts[0]
		}
		fv := v.Field(i)
		if slices.Contains(opts[1:], "omitempty") && fv.IsZero() {
			continue
		}
		out[name] = sanitize(fv, ancestors)
	}
	return out
}
