package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"storekpi/internal"
	"storekpi/internal/storage"
)

type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatSQLite Format = "sqlite"
	FormatText   Format = "text"
	FormatXLSX   Format = "xlsx"
)

var AllFormats = []Format{FormatCSV, FormatJSON, FormatSQLite, FormatText, FormatXLSX}

// ParseFormats reads a comma separated format list; "all" selects every format.
func ParseFormats(input string) ([]Format, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" || input == "all" {
		return AllFormats, nil
	}
	seen := map[Format]bool{}
	var out []Format
	for _, part := range strings.Split(input, ",") {
		f := Format(strings.TrimSpace(part))
		if f == "txt" {
			f = FormatText
		}
		if f == "db" {
			f = FormatSQLite
		}
		switch f {
		case FormatCSV, FormatJSON, FormatSQLite, FormatText, FormatXLSX:
		default:
			return nil, fmt.Errorf("unsupported format: %s", part)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// Meta describes the run a set of records came from.
type Meta struct {
	RunID     string
	Mode      internal.Mode
	Regionals []string
	Year      int
	Month     int
	StartedAt time.Time
}

// BaseName is the file name stem shared by every output of one pass.
func (m Meta) BaseName() string {
	return fmt.Sprintf("pmo_%s_%s_%d_%02d_%s",
		m.Mode, strings.Join(m.Regionals, ""), m.Year, m.Month, m.StartedAt.Format("20060102_150405"))
}

// Writer saves records to the output directory.
type Writer struct {
	Dir string
	// DBPath, when set, collects SQLite output in one database instead of a
	// per-run file.
	DBPath string
	Log    *slog.Logger
}

// Save writes records in every requested format. A failing format is logged
// and does not stop the others; the joined errors are returned with the
// paths that were written.
func (w Writer) Save(ctx context.Context, formats []Format, records []internal.Record, meta Meta) ([]string, error) {
	if len(records) == 0 {
		w.Log.Warn("no records to save", "mode", meta.Mode)
		return nil, nil
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, err
	}

	base := filepath.Join(w.Dir, meta.BaseName())
	var (
		paths []string
		errs  []error
	)
	for _, f := range formats {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		path, err := w.save(f, base, records, meta)
		if err != nil {
			w.Log.Error("save failed", "format", f, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", f, err))
			continue
		}
		w.Log.Info("saved", "format", f, "path", path, "records", len(records))
		paths = append(paths, path)
	}
	return paths, errors.Join(errs...)
}

func (w Writer) save(f Format, base string, records []internal.Record, meta Meta) (string, error) {
	switch f {
	case FormatCSV:
		path := base + ".csv"
		return path, WriteCSV(path, records)
	case FormatJSON:
		path := base + ".json"
		return path, WriteJSON(path, records, meta)
	case FormatText:
		path := base + "_report.txt"
		return path, WriteText(path, records, meta)
	case FormatXLSX:
		path := base + ".xlsx"
		return path, WriteXLSX(path, records)
	case FormatSQLite:
		path := w.DBPath
		if path == "" {
			path = base + ".db"
		}
		return path, writeSQLite(path, records, meta)
	default:
		return "", fmt.Errorf("unsupported format: %s", f)
	}
}

func writeSQLite(path string, records []internal.Record, meta Meta) error {
	db, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.InsertRecords(meta.RunID, records); err != nil {
		return err
	}
	errCount := countErrors(records)
	if err := db.InsertRun(meta.RunID,
		map[string]float64{"totalMs": float64(time.Since(meta.StartedAt).Milliseconds())},
		map[string]int{"stores": len(records), "ok": len(records) - errCount, "errors": errCount},
	); err != nil {
		return err
	}
	return db.SetMetadata(storage.LastRunKey, meta.RunID)
}

// Columns is the union of field names across records, in first-seen order.
func Columns(records []internal.Record) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range records {
		for _, f := range r.Fields() {
			if !seen[f.Name] {
				seen[f.Name] = true
				out = append(out, f.Name)
			}
		}
	}
	return out
}

func countErrors(records []internal.Record) int {
	n := 0
	for _, r := range records {
		if msg := r.Head().ErrorMessage; msg != "" && msg != internal.NoError {
			n++
		}
	}
	return n
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
