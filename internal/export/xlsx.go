package export

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"storekpi/internal"
)

// WriteXLSX writes the same columns as the CSV output to a single sheet.
func WriteXLSX(path string, records []internal.Record) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	columns := Columns(records)
	index := make(map[string]int, len(columns))
	for i, h := range columns {
		index[h] = i + 1
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil && len(columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = f.SetCellStyle(sheet, "A1", last, bold)
	}

	for i, r := range records {
		row := i + 2
		for _, field := range r.Fields() {
			cell, _ := excelize.CoordinatesToCellName(index[field.Name], row)
			_ = f.SetCellValue(sheet, cell, field.Value)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return f.SaveAs(path)
}
