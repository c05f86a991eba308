package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"fieldsheet/internal/pipeline"
)

// SheetName is the single output sheet.
const SheetName = "extractions"

// XLSXBytes renders the aggregated table as an XLSX workbook.
func XLSXBytes(table *pipeline.Table, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	f := excelize.NewFile()
	if index, _ := f.GetSheetIndex(SheetName); index == -1 {
		if _, err := f.NewSheet(SheetName); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(SheetName)
	f.SetActiveSheet(activeIndex)

	// Drop the default sheet so the workbook carries only "extractions".
	if SheetName != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	for i, h := range table.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	for ri, row := range table.Rows {
		for ci, v := range row {
			cell, _ := excelize.CoordinatesToCellName(ci+1, ri+2)
			_ = f.SetCellValue(SheetName, cell, v)
		}
	}

	// Widen the fixed leading columns; field columns keep the default.
	_ = f.SetColWidth(SheetName, "A", "A", 32) // document_name
	_ = f.SetColWidth(SheetName, "B", "B", 10) // status
	_ = f.SetColWidth(SheetName, "C", "C", 48) // error

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	logger.Info("export.xlsx.ok",
		"rows", len(table.Rows),
		"columns", len(table.Columns),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteXLSX writes the workbook to path, creating parent directories.
func WriteXLSX(table *pipeline.Table, path string, logger *slog.Logger) error {
	b, err := XLSXBytes(table, logger)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}
