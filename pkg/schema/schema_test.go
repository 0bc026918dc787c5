package schema_test

import (
	"errors"
	"testing"

	"github.com/aretw0/arbor/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		name string
	}{
		{"string", "string"},
		{" int ", "int"},
		{"number", "float"},
		{"[string]", "[string]"},
		{"[[int]]", "[[int]]"},
		{"object?", "object?"},
		{"[bool]?", "[bool]?"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			typ, err := schema.ParseType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.name, typ.Name())
		})
	}

	_, err := schema.ParseType("date")
	assert.ErrorContains(t, err, "unsupported type")
}

func TestTypes(t *testing.T) {
	tests := []struct {
		typ   schema.Type
		value any
		ok    bool
	}{
		{schema.String(), "x", true},
		{schema.String(), 1, false},
		{schema.Int(), 3, true},
		{schema.Int(), 3.0, true},
		{schema.Int(), 3.5, false},
		{schema.Float(), 3, true},
		{schema.Float(), "3", false},
		{schema.Bool(), false, true},
		{schema.Object(), map[string]any{}, true},
		{schema.Object(), []any{}, false},
		{schema.Slice(schema.String()), []any{"a", "b"}, true},
		{schema.Slice(schema.String()), []any{"a", 2}, false},
		{schema.Slice(schema.Int()), "nope", false},
		{schema.Optional(schema.Int()), nil, true},
		{schema.Any(), struct{}{}, true},
	}
	for _, tt := range tests {
		err := tt.typ.Validate(tt.value)
		if tt.ok {
			assert.NoError(t, err, "%s %v", tt.typ.Name(), tt.value)
		} else {
			assert.Error(t, err, "%s %v", tt.typ.Name(), tt.value)
		}
	}
}

func TestValidate(t *testing.T) {
	s, err := schema.ParseTypeMap(map[string]string{
		"id":    "string",
		"total": "float",
		"tags":  "[string]",
		"note":  "string?",
	})
	require.NoError(t, err)
	assert.Equal(t, "id:string,note:string?,tags:[string],total:float", s.String())

	assert.NoError(t, s.Validate(map[string]any{"id": "o-1", "total": 10.5, "tags": []any{"a"}}))

	err = s.Validate(map[string]any{"total": "ten", "tags": []any{}, "note": 1})
	require.Error(t, err)
	assert.Equal(t, "field \"id\": required\n"+
		"field \"note\": expected string, got int\n"+
		"field \"total\": expected float, got string", err.Error())

	var fe *schema.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "id", fe.Key)
}

func TestParseTypeMap_Invalid(t *testing.T) {
	_, err := schema.ParseTypeMap(map[string]string{"when": "date"})
	assert.ErrorContains(t, err, "field when")
}

func TestCustom(t *testing.T) {
	positive := schema.Custom("positive", func(v any) error {
		if n, ok := v.(int); !ok || n <= 0 {
			return errors.New("must be a positive int")
		}
		return nil
	})
	s := schema.Schema{"n": positive}
	assert.NoError(t, s.Validate(map[string]any{"n": 2}))
	assert.ErrorContains(t, s.Validate(map[string]any{"n": -1}), "must be a positive int")
}
