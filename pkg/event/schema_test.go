package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplySchema(t *testing.T) {
	schema := Schema{"x", "y"}

	cases := []struct {
		name string
		data any
		want any
	}{
		{"positional", []any{3, 4}, map[string]any{"x": 3, "y": 4}},
		{"short", []any{3}, map[string]any{"x": 3}},
		{"long", []any{3, 4, 5}, map[string]any{"x": 3, "y": 4}},
		{"empty", []any{}, map[string]any{}},
		{"named", map[string]any{"x": 1}, map[string]any{"x": 1}},
		{"string", "3,4", "3,4"},
		{"number", 7, 7},
		{"nil", nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ApplySchema(schema, tc.data))
		})
	}
}

func TestApplySchemaDoesNotMutate(t *testing.T) {
	positional := []any{1, 2}
	ApplySchema(Schema{"a", "b"}, positional)
	assert.Equal(t, []any{1, 2}, positional)

	named := map[string]any{"a": 1}
	out := ApplySchema(Schema{"b"}, named)
	assert.Equal(t, map[string]any{"a": 1}, named)
	assert.Equal(t, named, out)
}

func TestApplySchemaWithoutFields(t *testing.T) {
	data := []any{1}
	assert.Equal(t, data, ApplySchema(nil, data))
}
