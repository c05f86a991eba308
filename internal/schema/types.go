package schema

import (
	"github.com/shopspring/decimal"
)

// FieldType is the closed set of types a field may be compiled to.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeBool     FieldType = "bool"
	TypeInt      FieldType = "int"
	TypeFloat    FieldType = "float"
	TypeDecimal  FieldType = "decimal"
	TypeDate     FieldType = "date"
	TypeDatetime FieldType = "datetime"
	TypePercent  FieldType = "percent"
	TypeEnum     FieldType = "enum"
	TypeMoney    FieldType = "money"
)

// PercentScale selects how bare numeric percent literals are interpreted.
// Literals carrying an explicit '%' suffix are always on the 0-100 scale.
type PercentScale string

const (
	ScaleUnit    PercentScale = "0-1"
	ScaleHundred PercentScale = "0-100"
)

// FieldRequest is one raw user-requested output column, before compilation.
type FieldRequest struct {
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Type         FieldType `json:"type"`
	Required     bool      `json:"required"`
	EnumValues   []string  `json:"enum_values,omitempty"`
	Examples     []string  `json:"examples,omitempty"`
	CurrencyHint string    `json:"currency_hint,omitempty"` // ISO 4217, money fields only
}

// FieldSpec is one compiled output column. Name is unique within a schema and
// position in the field list defines output column order.
type FieldSpec struct {
	Name         string
	Description  string
	Type         FieldType
	Required     bool
	EnumValues   []string
	Examples     []string
	CurrencyHint string
}

// Options carries global compilation options.
type Options struct {
	PercentScale PercentScale
}

// Money is the normalized value of a money field.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"` // ISO 4217
}

func (m Money) String() string {
	return m.Amount.String() + " " + m.Currency
}

// CompiledSchema is an immutable, ordered, typed field list. Built once per run
// by Compile and read-only thereafter; safe for concurrent use.
type CompiledSchema struct {
	fields []FieldSpec
	byName map[string]int
	opts   Options
}

// Fields returns the compiled fields in declaration order.
// Callers must not mutate the returned slice.
func (s *CompiledSchema) Fields() []FieldSpec {
	return s.fields
}

// Field returns the spec for name, if present.
func (s *CompiledSchema) Field(name string) (FieldSpec, bool) {
	i, ok := s.byName[name]
	if !ok {
		return FieldSpec{}, false
	}
	return s.fields[i], true
}

// Len returns the number of compiled fields.
func (s *CompiledSchema) Len() int { return len(s.fields) }

// Options returns the global options the schema was compiled with.
func (s *CompiledSchema) Options() Options { return s.opts }

// Normalize runs the registry normalizer for the named field against a raw value.
func (s *CompiledSchema) Normalize(name string, raw any) (any, error) {
	spec, ok := s.Field(name)
	if !ok {
		return nil, &FieldError{Field: name, Message: "unknown field"}
	}
	return normalizeValue(raw, spec, s.opts)
}
