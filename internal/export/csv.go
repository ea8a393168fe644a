package export

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"storekpi/internal"
)

const utf8BOM = "\ufeff"

// WriteCSV writes one row per record. Records missing a column leave it blank.
func WriteCSV(path string, records []internal.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString(utf8BOM); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	columns := Columns(records)
	if err := w.Write(columns); err != nil {
		return err
	}
	for _, r := range records {
		values := map[string]any{}
		for _, field := range r.Fields() {
			values[field.Name] = field.Value
		}
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = formatCell(values[c])
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
