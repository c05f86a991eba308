package schema

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FieldError reports a validation failure for a single field. It never escalates
// past the field it names.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Message)
}

// normalizer converts one raw model value into its validated, typed form.
type normalizer func(raw any, spec FieldSpec, opts Options) (any, error)

// registry is the closed set of field types. Compilation rejects anything
// outside this map; no caller may extend it at runtime.
var registry = map[FieldType]normalizer{
	TypeString:   normalizeString,
	TypeBool:     normalizeBool,
	TypeInt:      normalizeInt,
	TypeFloat:    normalizeFloat,
	TypeDecimal:  normalizeDecimal,
	TypeDate:     normalizeDate,
	TypeDatetime: normalizeDatetime,
	TypePercent:  normalizePercent,
	TypeEnum:     normalizeEnum,
	TypeMoney:    normalizeMoney,
}

// IsAllowed reports whether t is a registered field type.
func IsAllowed(t FieldType) bool {
	_, ok := registry[t]
	return ok
}

// AllowedTypes returns the registered type names, sorted.
func AllowedTypes() []string {
	out := make([]string, 0, len(registry))
	for t := range registry {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}

func normalizeValue(raw any, spec FieldSpec, opts Options) (any, error) {
	fn, ok := registry[spec.Type]
	if !ok {
		return nil, fieldErrf(spec, "unsupported type %q", spec.Type)
	}
	return fn(raw, spec, opts)
}

func fieldErrf(spec FieldSpec, format string, args ...any) *FieldError {
	return &FieldError{Field: spec.Name, Message: fmt.Sprintf(format, args...)}
}

func normalizeString(raw any, spec FieldSpec, _ Options) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fieldErrf(spec, "expected string, got %T", raw)
	}
	return strings.TrimSpace(s), nil
}

func normalizeBool(raw any, spec FieldSpec, _ Options) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes":
			return true, nil
		case "false", "no":
			return false, nil
		}
		return nil, fieldErrf(spec, "invalid boolean literal %q", v)
	default:
		return nil, fieldErrf(spec, "expected bool, got %T", raw)
	}
}

func normalizeInt(raw any, spec FieldSpec, _ Options) (any, error) {
	switch v := raw.(type) {
	case float64:
		// encoding/json decodes all numbers to float64.
		if v != math.Trunc(v) {
			return nil, fieldErrf(spec, "expected integer, got %v", v)
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fieldErrf(spec, "invalid integer literal %q", v)
		}
		return n, nil
	default:
		return nil, fieldErrf(spec, "expected integer, got %T", raw)
	}
}

func normalizeFloat(raw any, spec FieldSpec, _ Options) (any, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fieldErrf(spec, "invalid number literal %q", v)
		}
		return f, nil
	default:
		return nil, fieldErrf(spec, "expected number, got %T", raw)
	}
}

func normalizeDecimal(raw any, spec FieldSpec, _ Options) (any, error) {
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, fieldErrf(spec, "invalid decimal literal %q", v)
		}
		return d, nil
	default:
		return nil, fieldErrf(spec, "expected decimal, got %T", raw)
	}
}

// normalizeDate accepts YYYY-MM-DD only. Anything else is an error, not a guess.
func normalizeDate(raw any, spec FieldSpec, _ Options) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fieldErrf(spec, "expected date string, got %T", raw)
	}
	s = strings.TrimSpace(s)
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fieldErrf(spec, "invalid date %q, want YYYY-MM-DD", s)
	}
	return t.Format("2006-01-02"), nil
}

var datetimeLayouts = []struct {
	layout string
	hasTZ  bool
}{
	{time.RFC3339Nano, true},
	{time.RFC3339, true},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02 15:04:05", false},
}

// normalizeDatetime accepts ISO-8601; the timezone is optional but preserved
// when present.
func normalizeDatetime(raw any, spec FieldSpec, _ Options) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fieldErrf(spec, "expected datetime string, got %T", raw)
	}
	s = strings.TrimSpace(s)
	for _, l := range datetimeLayouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		if l.hasTZ {
			return t.Format(time.RFC3339), nil
		}
		return t.Format("2006-01-02T15:04:05"), nil
	}
	return nil, fieldErrf(spec, "invalid datetime %q, want ISO-8601", s)
}

// normalizePercent stores percents as a float in [0,1]. A '%' suffix always
// means the 0-100 scale; bare numbers follow opts.PercentScale. Out-of-range
// values after normalization are an error, not clamped.
func normalizePercent(raw any, spec FieldSpec, opts Options) (any, error) {
	var val float64
	explicit := false
	switch v := raw.(type) {
	case float64:
		val = v
	case string:
		s := strings.TrimSpace(v)
		if strings.HasSuffix(s, "%") {
			explicit = true
			s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fieldErrf(spec, "invalid percent literal %q", v)
		}
		val = f
	default:
		return nil, fieldErrf(spec, "expected percent, got %T", raw)
	}
	if explicit || opts.PercentScale == ScaleHundred {
		val /= 100.0
	}
	if val < 0 || val > 1 {
		return nil, fieldErrf(spec, "percent %v out of range after normalization", val)
	}
	return val, nil
}

// normalizeEnum requires strict membership; an unknown value is an error, never
// coerced to the nearest match.
func normalizeEnum(raw any, spec FieldSpec, _ Options) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fieldErrf(spec, "expected enum string, got %T", raw)
	}
	s = strings.TrimSpace(s)
	for _, v := range spec.EnumValues {
		if s == v {
			return s, nil
		}
	}
	return nil, fieldErrf(spec, "value %q not in enum [%s]", s, strings.Join(spec.EnumValues, ", "))
}
