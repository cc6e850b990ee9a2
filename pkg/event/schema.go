package event

// Schema names the positions of a positional payload.
type Schema []string

// ApplySchema binds a positional payload ([]any) to named fields: field i of
// schema receives position i of data. Positions past the end of data are left
// out and positions past the end of the schema are dropped. Any other value is
// returned unchanged. data itself is never modified.
func ApplySchema(schema Schema, data any) any {
	positional, ok := data.([]any)
	if !ok || len(schema) == 0 {
		return data
	}

	named := make(map[string]any, len(schema))
	for i, field := range schema {
		if i >= len(positional) {
			break
		}
		named[field] = positional[i]
	}
	return named
}
