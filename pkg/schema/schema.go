package schema

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// FieldError is a single field validation failure.
type FieldError struct {
	Key    string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Key, e.Reason)
}

// Schema maps field names to their expected types.
type Schema map[string]Type

// ParseTypeMap builds a schema from type strings, e.g. {"id": "string", "tags": "[string]"}.
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	out := make(Schema, len(typeMap))
	for key, typeStr := range typeMap {
		t, err := ParseType(typeStr)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		out[key] = t
	}
	return out, nil
}

// Fields returns the field names in sorted order.
func (s Schema) Fields() []string {
	return slices.Sorted(maps.Keys(s))
}

// String renders the schema as "key:type" pairs in field order.
func (s Schema) String() string {
	parts := make([]string, 0, len(s))
	for _, k := range s.Fields() {
		parts = append(parts, k+":"+s[k].Name())
	}
	return strings.Join(parts, ",")
}

// Validate checks data against the schema. Every failing field is reported as
// a *FieldError, joined in field order.
func (s Schema) Validate(data map[string]any) error {
	var errs []error
	for _, key := range s.Fields() {
		t := s[key]
		value, present := data[key]
		if !present {
			if !isOptional(t) {
				errs = append(errs, &FieldError{Key: key, Reason: "required"})
			}
			continue
		}
		if err := t.Validate(value); err != nil {
			errs = append(errs, &FieldError{Key: key, Reason: err.Error()})
		}
	}
	return errors.Join(errs...)
}
