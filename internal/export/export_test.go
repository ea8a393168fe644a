package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"storekpi/internal"
	"storekpi/internal/logging"
	"storekpi/internal/storage"
)

func sampleMeta() Meta {
	return Meta{
		RunID:     "run-42",
		Mode:      internal.ModeAll,
		Regionals: []string{"A", "C"},
		Year:      2025,
		Month:     9,
		StartedAt: time.Date(2025, 10, 1, 8, 30, 0, 0, time.UTC),
	}
}

func sampleRecords() []internal.Record {
	head := func(store, errMsg string) internal.RecordHeader {
		return internal.RecordHeader{
			Regional: "A", StoreName: store, Year: 2025, Month: 9,
			ExtractionType: "all", ExtractionMethod: "single_pass",
			ErrorMessage: errMsg, ExtractionTimestamp: "2025-10-01T08:31:00Z",
		}
	}
	return []internal.Record{
		internal.CombinedRecord{
			RecordHeader: head("KG Mart Bogor", ""),
			Scores:       internal.Scores{Financial: 91.5, Customer: 80, Total: 87.25},
			KPIs: []internal.KPI{
				{Row: 2, Name: "Revenue", CleanName: "Revenue", Perspective: internal.PerspectiveFinancial, Value: 1234567.5},
				{Row: 9, Name: "Customer Satisfaction", CleanName: "Customer_Satisfaction", Perspective: internal.PerspectiveCustomer, Value: 4.5},
			},
		},
		internal.ErrorRecord{RecordHeader: head("KG Mart Depok", "store link not found"), Mode: internal.ModeAll},
		internal.CombinedRecord{
			RecordHeader: head("KG Mart Bekasi", ""),
			KPIs: []internal.KPI{
				{Row: 2, Name: "Revenue", CleanName: "Revenue", Perspective: internal.PerspectiveFinancial, Value: 10},
				{Row: 12, Name: "Fraud Cases", CleanName: "Fraud_Cases", Perspective: internal.PerspectiveInternalBusiness, Value: 0},
			},
		},
	}
}

func TestParseFormats(t *testing.T) {
	all, err := ParseFormats("all")
	require.NoError(t, err)
	assert.Equal(t, AllFormats, all)

	some, err := ParseFormats("CSV, txt,db,csv")
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatCSV, FormatText, FormatSQLite}, some)

	_, err = ParseFormats("csv,parquet")
	require.Error(t, err)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "pmo_all_AC_2025_09_20251001_083000", sampleMeta().BaseName())
}

func TestColumnsUnionInFirstSeenOrder(t *testing.T) {
	cols := Columns(sampleRecords())
	assert.Equal(t, "regional", cols[0])
	assert.Contains(t, cols, "customer_customer_satisfaction_ach")
	assert.Contains(t, cols, "internal_business_process_fraud_cases_ach")
	assert.Less(t, indexOf(cols, "kpi_09_name"), indexOf(cols, "kpi_12_name"))
	assert.Equal(t, len(cols), len(uniq(cols)))
}

func TestSaveAllFormats(t *testing.T) {
	dir := t.TempDir()
	w := Writer{Dir: dir, Log: logging.Discard()}
	meta := sampleMeta()

	paths, err := w.Save(context.Background(), AllFormats, sampleRecords(), meta)
	require.NoError(t, err)
	require.Len(t, paths, 5)
	for _, p := range paths {
		assert.FileExists(t, p)
		assert.True(t, strings.HasPrefix(filepath.Base(p), meta.BaseName()))
	}

	db, err := storage.Open(filepath.Join(dir, meta.BaseName()+".db"))
	require.NoError(t, err)
	defer db.Close()
	stores, err := db.ListStores(meta.RunID)
	require.NoError(t, err)
	assert.Len(t, stores, 3)
}

func TestSaveNothing(t *testing.T) {
	paths, err := Writer{Dir: t.TempDir(), Log: logging.Discard()}.Save(context.Background(), AllFormats, nil, sampleMeta())
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(path, sampleRecords()))

	blob, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(blob), utf8BOM))

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(blob), utf8BOM))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	header := rows[0]
	col := func(name string) int { return indexOf(header, name) }
	assert.Equal(t, "KG Mart Bogor", rows[1][col("store_name")])
	assert.Equal(t, "None", rows[1][col("error_message")])
	assert.Equal(t, "1234567.5", rows[1][col("kpi_02_value")])
	assert.Equal(t, "store link not found", rows[2][col("error_message")])
	assert.Equal(t, "0", rows[2][col("total_kpis_extracted")])
	assert.Equal(t, "", rows[2][col("kpi_02_value")])
	assert.Equal(t, "Fraud Cases", rows[3][col("kpi_12_name")])
}

func TestJSONRoundTripKeepsColumnOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	records := sampleRecords()
	require.NoError(t, WriteJSON(path, records, sampleMeta()))

	meta, back, err := ReadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, "run-42", meta.RunID)
	assert.Equal(t, internal.ModeAll, meta.Mode)
	assert.Equal(t, []string{"A", "C"}, meta.Regionals)
	require.Len(t, back, 3)

	for i := range records {
		assert.Equal(t, names(records[i].Fields()), names(back[i].Fields()))
	}
	assert.Equal(t, "KG Mart Depok", back[1].Head().StoreName)
	assert.Equal(t, "store link not found", back[1].Head().ErrorMessage)
	assert.Equal(t, 9, back[0].Head().Month)
}

func TestRenderReport(t *testing.T) {
	out := RenderReport(sampleRecords(), sampleMeta(), time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC))

	assert.Contains(t, out, "PMO DATA EXTRACTION REPORT")
	assert.Contains(t, out, "STORE 1: KG Mart Bogor")
	assert.Contains(t, out, "Control 02: Revenue")
	assert.Contains(t, out, "1,234,567.50")
	assert.Contains(t, out, "Financial Score")
	assert.Contains(t, out, "store link not found")
	assert.NotContains(t, out, "_ach")
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteXLSX(path, sampleRecords()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "regional", rows[0][0])
	assert.Equal(t, "KG Mart Depok", rows[2][indexOf(rows[0], "store_name")])
}

func TestGroupThousands(t *testing.T) {
	assert.Equal(t, "1,234.50", groupThousands(1234.5))
	assert.Equal(t, "-12,000.00", groupThousands(-12000))
	assert.Equal(t, "0.00", groupThousands(0))
	assert.Equal(t, "999.99", groupThousands(999.99))
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

func uniq(list []string) map[string]bool {
	out := map[string]bool{}
	for _, s := range list {
		out[s] = true
	}
	return out
}

func names(fields []internal.Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}
