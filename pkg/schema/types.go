package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Type validates one value.
type Type interface {
	// Name returns the type as written in a type string, e.g. "int" or "[string]".
	Name() string
	Validate(value any) error
}

type basic struct {
	name  string
	check func(any) bool
}

func (t basic) Name() string { return t.name }

func (t basic) Validate(value any) error {
	if !t.check(value) {
		return fmt.Errorf("expected %s, got %T", t.name, value)
	}
	return nil
}

// String accepts strings.
func String() Type {
	return basic{name: "string", check: func(v any) bool { _, ok := v.(string); return ok }}
}

// Bool accepts booleans.
func Bool() Type {
	return basic{name: "bool", check: func(v any) bool { _, ok := v.(bool); return ok }}
}

// Int accepts integers and whole floats.
func Int() Type {
	return basic{name: "int", check: func(v any) bool {
		switch n := v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return n == float64(int64(n))
		case float32:
			return n == float32(int64(n))
		}
		return false
	}}
}

// Float accepts any number.
func Float() Type {
	return basic{name: "float", check: func(v any) bool {
		switch v.(type) {
		case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		}
		return false
	}}
}

// Object accepts nested maps.
func Object() Type {
	return basic{name: "object", check: func(v any) bool {
		rv := reflect.ValueOf(v)
		return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
	}}
}

// Any accepts every present value.
func Any() Type {
	return basic{name: "any", check: func(any) bool { return true }}
}

type slice struct{ elem Type }

// Slice accepts slices whose elements all satisfy elem.
func Slice(elem Type) Type { return slice{elem: elem} }

func (t slice) Name() string { return "[" + t.elem.Name() + "]" }

func (t slice) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected %s, got %T", t.Name(), value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

type optional struct{ Type }

// Optional lets the field be missing or nil.
func Optional(t Type) Type { return optional{Type: t} }

func (t optional) Name() string { return t.Type.Name() + "?" }

func (t optional) Validate(value any) error {
	if value == nil {
		return nil
	}
	return t.Type.Validate(value)
}

func isOptional(t Type) bool {
	_, ok := t.(optional)
	return ok
}

// Custom creates a type from a validation function.
func Custom(name string, validate func(any) error) Type { return custom{name: name, fn: validate} }

type custom struct {
	name string
	fn   func(any) error
}

func (t custom) Name() string             { return t.name }
func (t custom) Validate(value any) error { return t.fn(value) }

// ParseType converts a type string: string, int, float, bool, object, any,
// [T] for slices and a trailing ? for optional fields.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if inner, ok := strings.CutSuffix(s, "?"); ok {
		t, err := ParseType(inner)
		if err != nil {
			return nil, err
		}
		return Optional(t), nil
	}
	if len(s) > 2 && s[0] == '[' && s[len(s)-1] == ']' {
		elem, err := ParseType(s[1 : len(s)-1])
		if err != nil {
			return nil, err
		}
		return Slice(elem), nil
	}

	switch s {
	case "string":
		return String(), nil
	case "int":
		return Int(), nil
	case "float", "number":
		return Float(), nil
	case "bool":
		return Bool(), nil
	case "object":
		return Object(), nil
	case "any":
		return Any(), nil
	default:
		return nil, fmt.Errorf("unsupported type: %q", s)
	}
}
