package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"fieldsheet/internal/schema"
)

// InstructionRefiner maps free-form user field instructions onto typed field
// requests via a model call. It implements schema.Refiner; the compiler
// re-validates everything it proposes, so a bad proposal cannot widen the
// allowed type set.
type InstructionRefiner struct {
	invoker *Invoker
	log     *slog.Logger
}

func NewInstructionRefiner(inv *Invoker, logger *slog.Logger) *InstructionRefiner {
	if logger == nil {
		logger = slog.Default()
	}
	return &InstructionRefiner{invoker: inv, log: logger}
}

func (r *InstructionRefiner) Refine(ctx context.Context, instructions string) ([]schema.FieldRequest, error) {
	p := Prompt{
		System:     refinerSystemPrompt(),
		User:       "User field request:\n" + strings.TrimSpace(instructions),
		SchemaJSON: fieldRequestJSONSchema(),
	}

	raw, err := r.invoker.Invoke(ctx, p)
	if err != nil {
		return nil, err
	}
	raw = StripCodeFences(raw)

	if err := ValidateJSONAgainstSchema(fieldRequestJSONSchema(), raw); err != nil {
		return nil, fmt.Errorf("refiner response: %w", err)
	}

	var resp struct {
		Fields []schema.FieldRequest `json:"fields"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode refiner response: %w", err)
	}
	r.log.Info("refine.ok", "fields", len(resp.Fields))
	return resp.Fields, nil
}

func refinerSystemPrompt() string {
	return "You map user-described fields to a strict schema using only allowed types. " +
		"Allowed types: " + strings.Join(schema.AllowedTypes(), ", ") + ". " +
		"Rules: " +
		"1) Do not invent fields the user did not ask for. " +
		"2) Field names must start with a letter and contain only letters, numbers, underscore. " +
		"Never use the names document_name, status, or error. " +
		"3) For enum, provide enum_values explicitly. " +
		"4) For money, include currency_hint only if the user names a currency (ISO 4217). " +
		"5) date means YYYY-MM-DD, datetime means ISO 8601, percent is a number. " +
		"6) Output only JSON matching the expected schema."
}

func fieldRequestJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"fields"},
		"properties": map[string]any{
			"fields": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"name", "description", "type"},
					"properties": map[string]any{
						"name":          map[string]any{"type": "string", "pattern": `^[A-Za-z][A-Za-z0-9_]*$`},
						"description":   map[string]any{"type": "string"},
						"type":          map[string]any{"type": "string"},
						"required":      map[string]any{"type": "boolean"},
						"enum_values":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"examples":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"currency_hint": map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
					},
				},
			},
		},
	}
}
