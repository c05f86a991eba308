package pipeline

import (
	"fieldsheet/internal/schema"
)

// Table is the aggregated result set: a fixed column set derived from the
// compiled schema, identical across all rows regardless of per-document
// outcomes. That fixed identity is what makes heterogeneous documents
// comparable in one sheet.
type Table struct {
	Columns []string
	Rows    [][]string
}

const errCellPrefix = "#ERROR: "

// BuildTable flattens results into the output table. Column order is always
// [document_name, status, error] + schema field order; a missing or erroring
// field renders as an empty or error-marked cell, never as a missing column.
func BuildTable(cs *schema.CompiledSchema, results []*Result) *Table {
	cols := make([]string, 0, 3+cs.Len())
	cols = append(cols, "document_name", "status", "error")
	for _, f := range cs.Fields() {
		cols = append(cols, f.Name)
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		row := make([]string, 0, len(cols))
		row = append(row, r.DocumentName, string(r.Status), r.Err)
		for _, f := range cs.Fields() {
			if v, ok := r.Values[f.Name]; ok {
				row = append(row, renderCell(v))
				continue
			}
			if msg, ok := r.FieldErrors[f.Name]; ok {
				row = append(row, errCellPrefix+msg)
				continue
			}
			row = append(row, "")
		}
		rows = append(rows, row)
	}

	return &Table{Columns: cols, Rows: rows}
}
