package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"fieldsheet/internal/llm"
	"fieldsheet/internal/schema"
)

// ParseError marks a model response whose top-level structure was unparsable.
// The whole document fails; there is no partial salvage from a malformed
// top-level shape.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparsable model response: %v", e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// ValidateResponse checks a raw model response against the compiled schema.
// Fields validate independently: one bad field never hides the values of a
// correct sibling in the same document.
func ValidateResponse(cs *schema.CompiledSchema, raw []byte, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	raw = llm.StripCodeFences(raw)

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ParseError{Cause: err}
	}

	// Advisory structural check against the compiled JSON Schema. Failure here
	// is diagnostic only; per-field normalization below decides what survives.
	if err := llm.ValidateJSONAgainstSchema(cs.JSONSchema(), raw); err != nil {
		logger.Warn("validate.schema_mismatch", "error", err)
	}

	values := make(map[string]any)
	fieldErrors := make(map[string]string)
	requiredFailed := 0

	for _, f := range cs.Fields() {
		rawVal, present := parsed[f.Name]
		if !present || rawVal == nil {
			if f.Required {
				fieldErrors[f.Name] = "required field missing"
				requiredFailed++
			}
			continue
		}
		val, err := cs.Normalize(f.Name, rawVal)
		if err != nil {
			fieldErrors[f.Name] = err.Error()
			if f.Required {
				requiredFailed++
			}
			continue
		}
		values[f.Name] = val
	}

	res := &Result{
		Values:      values,
		FieldErrors: fieldErrors,
	}
	switch {
	case len(values) == 0 && len(fieldErrors) > 0:
		res.Status = StatusFailed
		res.Err = fmt.Sprintf("all %d extracted field(s) failed validation", len(fieldErrors))
	case requiredFailed > 0:
		res.Status = StatusPartial
	default:
		res.Status = StatusOK
	}
	return res, nil
}
