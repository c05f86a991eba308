package pipeline

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"fieldsheet/internal/schema"
)

// Status is the per-document outcome.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Result is one document's extraction outcome. Created once by the document
// pipeline and never mutated after return.
type Result struct {
	DocumentName string
	Status       Status
	Err          string            // top-level error, empty on ok/partial
	FieldErrors  map[string]string // field name -> error, validation failures only
	Values       map[string]any    // field name -> normalized value, validated fields only
}

func failedResult(name string, err error) *Result {
	return &Result{
		DocumentName: name,
		Status:       StatusFailed,
		Err:          err.Error(),
	}
}

// renderCell formats a normalized value for one table cell.
func renderCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case decimal.Decimal:
		return t.String()
	case schema.Money:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
