package schema

// JSONSchema renders the compiled schema as a JSON-Schema (draft 2020-12
// subset) generic map. We pass this to the model as a structured output
// constraint and also use it locally to sanity-check raw responses.
func (s *CompiledSchema) JSONSchema() map[string]any {
	props := make(map[string]any, s.Len())
	var required []string

	for _, f := range s.fields {
		props[f.Name] = fieldProp(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}

	out := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func fieldProp(f FieldSpec) map[string]any {
	var p map[string]any
	switch f.Type {
	case TypeString:
		p = map[string]any{"type": "string"}
	case TypeBool:
		p = map[string]any{"type": "boolean"}
	case TypeInt:
		p = map[string]any{"type": "integer"}
	case TypeFloat:
		p = map[string]any{"type": "number"}
	case TypeDecimal:
		// Decimals travel as strings to avoid float truncation.
		p = map[string]any{"type": "string", "pattern": `^-?\d+(\.\d+)?$`}
	case TypeDate:
		p = map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`}
	case TypeDatetime:
		p = map[string]any{"type": "string", "minLength": 10}
	case TypePercent:
		p = map[string]any{"type": []any{"number", "string"}}
	case TypeEnum:
		p = map[string]any{"type": "string", "enum": toAnySlice(f.EnumValues)}
	case TypeMoney:
		// Either a display string ("$12.50") or a decomposed object.
		p = map[string]any{
			"anyOf": []any{
				map[string]any{"type": "string", "minLength": 1},
				map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"amount":   map[string]any{"type": []any{"string", "number"}},
						"currency": map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
					},
					"required": []string{"amount"},
				},
			},
		}
	default:
		p = map[string]any{}
	}
	if f.Description != "" {
		p["description"] = f.Description
	}
	return p
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
