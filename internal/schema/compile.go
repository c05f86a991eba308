package schema

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// safeName is the identifier shape accepted for output columns.
var safeName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// reservedColumns are the fixed leading table headers. A field by one of these
// names would duplicate a header in the output sheet.
var reservedColumns = map[string]struct{}{
	"document_name": {},
	"status":        {},
	"error":         {},
}

// CompileError aggregates every invalid field request found in one pass, so a
// user sees all schema problems at once instead of fixing them one at a time.
type CompileError struct {
	Problems []string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("schema compilation failed: %s", strings.Join(e.Problems, "; "))
}

// Refiner is an optional, advisory pass that maps free-form user instructions
// onto field requests (typically a model call). Its output is advisory only:
// Compile re-validates it against the registry before acceptance.
type Refiner interface {
	Refine(ctx context.Context, instructions string) ([]FieldRequest, error)
}

// Compile turns an ordered list of field requests into an immutable
// CompiledSchema. All request problems are collected and returned together.
// Compiling the same request list twice yields structurally identical schemas.
func Compile(reqs []FieldRequest, opts Options) (*CompiledSchema, error) {
	if opts.PercentScale == "" {
		opts.PercentScale = ScaleUnit
	}
	if opts.PercentScale != ScaleUnit && opts.PercentScale != ScaleHundred {
		return nil, &CompileError{Problems: []string{
			fmt.Sprintf("invalid percent scale %q, want %q or %q", opts.PercentScale, ScaleUnit, ScaleHundred),
		}}
	}

	var problems []string
	fields := make([]FieldSpec, 0, len(reqs))
	byName := make(map[string]int, len(reqs))

	if len(reqs) == 0 {
		problems = append(problems, "no fields requested")
	}

	for _, r := range reqs {
		name := strings.TrimSpace(r.Name)
		if !safeName.MatchString(name) {
			problems = append(problems, fmt.Sprintf("unsafe field name %q: must start with a letter and contain only letters, numbers, underscore", r.Name))
			continue
		}
		if _, reserved := reservedColumns[name]; reserved {
			problems = append(problems, fmt.Sprintf("field %q: reserved column name", name))
			continue
		}
		if _, dup := byName[name]; dup {
			problems = append(problems, fmt.Sprintf("duplicate field name %q", name))
			continue
		}
		if !IsAllowed(r.Type) {
			problems = append(problems, fmt.Sprintf("field %q: unsupported type %q (allowed: %s)", name, r.Type, strings.Join(AllowedTypes(), ", ")))
			continue
		}

		spec := FieldSpec{
			Name:        name,
			Description: strings.TrimSpace(r.Description),
			Type:        r.Type,
			Required:    r.Required,
			Examples:    append([]string(nil), r.Examples...),
		}

		switch r.Type {
		case TypeEnum:
			if len(r.EnumValues) == 0 {
				problems = append(problems, fmt.Sprintf("field %q: enum type requires enum_values", name))
				continue
			}
			bad := false
			for _, v := range r.EnumValues {
				if strings.TrimSpace(v) == "" {
					problems = append(problems, fmt.Sprintf("field %q: enum_values cannot contain empty strings", name))
					bad = true
					break
				}
			}
			if bad {
				continue
			}
			spec.EnumValues = append([]string(nil), r.EnumValues...)
		case TypeMoney:
			if hint := strings.TrimSpace(r.CurrencyHint); hint != "" {
				code, ok := isoCode(hint)
				if !ok {
					problems = append(problems, fmt.Sprintf("field %q: invalid currency hint %q, want ISO 4217", name, r.CurrencyHint))
					continue
				}
				spec.CurrencyHint = code
			}
		}

		byName[name] = len(fields)
		fields = append(fields, spec)
	}

	if len(problems) > 0 {
		return nil, &CompileError{Problems: problems}
	}
	return &CompiledSchema{fields: fields, byName: byName, opts: opts}, nil
}

// CompileInstructions runs the advisory refiner over free-form instructions and
// compiles its proposal. A refiner that proposes a disallowed type fails
// compilation; it is never silently widened.
func CompileInstructions(ctx context.Context, r Refiner, instructions string, opts Options) (*CompiledSchema, error) {
	reqs, err := r.Refine(ctx, instructions)
	if err != nil {
		return nil, fmt.Errorf("schema refinement: %w", err)
	}
	return Compile(reqs, opts)
}
