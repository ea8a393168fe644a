package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"storekpi/internal"
)

var headerColumns = map[string]bool{
	"regional":             true,
	"store_name":           true,
	"year":                 true,
	"month":                true,
	"extraction_type":      true,
	"extraction_method":    true,
	"error_message":        true,
	"extraction_timestamp": true,
}

// WriteText renders a human readable report with one block per store.
func WriteText(path string, records []internal.Record, meta Meta) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(RenderReport(records, meta, time.Now())), 0o644)
}

func RenderReport(records []internal.Record, meta Meta, now time.Time) string {
	var b strings.Builder

	summary := table.NewWriter()
	summary.SetTitle("PMO DATA EXTRACTION REPORT")
	summary.SetStyle(table.StyleDouble)
	summary.AppendRows([]table.Row{
		{"Extraction Date", now.Format("2006-01-02 15:04:05")},
		{"Run ID", meta.RunID},
		{"Mode", meta.Mode},
		{"Period", fmt.Sprintf("%d-%02d", meta.Year, meta.Month)},
		{"Regionals", strings.Join(meta.Regionals, ", ")},
		{"Total Stores", len(records)},
		{"Errors", countErrors(records)},
	})
	b.WriteString(summary.Render())
	b.WriteString("\n")

	for i, r := range records {
		b.WriteString("\n")
		b.WriteString(renderStore(i+1, r))
		b.WriteString("\n")
	}
	return b.String()
}

func renderStore(n int, r internal.Record) string {
	h := r.Head()
	fields := r.Fields()

	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("STORE %d: %s", n, h.StoreName))
	t.SetStyle(table.StyleLight)
	t.AppendRows([]table.Row{
		{"Regional", h.Regional},
		{"Period", fmt.Sprintf("%d-%02d", h.Year, h.Month)},
		{"Extraction Type", h.ExtractionType},
	})
	t.AppendSeparator()

	kpiNames := map[string]string{}
	var kpiOrder []string
	for _, f := range fields {
		if num, ok := kpiField(f.Name, "_name"); ok {
			kpiNames[num] = fmt.Sprint(f.Value)
			kpiOrder = append(kpiOrder, num)
		}
	}

	for _, f := range fields {
		if headerColumns[f.Name] || strings.HasSuffix(f.Name, "_ach") {
			continue
		}
		if _, ok := kpiField(f.Name, "_name"); ok {
			continue
		}
		if _, ok := kpiField(f.Name, "_value"); ok {
			continue
		}
		t.AppendRow(table.Row{metricLabel(f.Name), displayValue(f.Value)})
	}

	if len(kpiOrder) > 0 {
		t.AppendSeparator()
		values := map[string]any{}
		for _, f := range fields {
			if num, ok := kpiField(f.Name, "_value"); ok {
				values[num] = f.Value
			}
		}
		for _, num := range kpiOrder {
			t.AppendRow(table.Row{"Control " + num + ": " + kpiNames[num], displayValue(values[num])})
		}
	}

	if h.ErrorMessage != "" && h.ErrorMessage != internal.NoError {
		t.AppendSeparator()
		t.AppendRow(table.Row{"ERROR", h.ErrorMessage})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	return t.Render()
}

func kpiField(name, suffix string) (string, bool) {
	if !strings.HasPrefix(name, "kpi_") || !strings.HasSuffix(name, suffix) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, "kpi_"), suffix), true
}

func metricLabel(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		switch w {
		case "cogs", "ebitda", "opex":
			words[i] = strings.ToUpper(w)
		case "to", "and":
		default:
			if w != "" {
				words[i] = strings.ToUpper(w[:1]) + w[1:]
			}
		}
	}
	return strings.Join(words, " ")
}

func displayValue(v any) string {
	if f, ok := v.(float64); ok {
		return groupThousands(f)
	}
	return formatCell(v)
}

// groupThousands formats f with two decimals and comma grouping, 1,234.50.
func groupThousands(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}
