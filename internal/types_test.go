package internal

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldNames(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

func fieldMap(fields []Field) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.Name] = f.Value
	}
	return out
}

var headerNames = []string{
	"regional", "store_name", "year", "month",
	"extraction_type", "extraction_method", "error_message", "extraction_timestamp",
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Scores ")
	require.NoError(t, err)
	assert.Equal(t, ModeScores, m)

	_, err = ParseMode("everything")
	require.Error(t, err)

	assert.Equal(t, []Mode{ModeFinancial, ModeScores}, ModeBoth.Passes())
	assert.Equal(t, []Mode{ModeAll}, ModeAll.Passes())
}

func TestFinancialRecordFields(t *testing.T) {
	r := FinancialRecord{
		RecordHeader:       RecordHeader{Regional: "A", StoreName: "KG Mart Bogor", Year: 2025, Month: 9},
		Revenue:            1000,
		OperatingProfit:    120,
		OperatingProfitRow: 6,
		StructureType:      StructureNoEBITDA,
	}
	names := fieldNames(r.Fields())
	assert.Equal(t, headerNames, names[:len(headerNames)])
	assert.Equal(t, []string{
		"revenue", "cogs", "cogs_to_revenue", "opex", "operating_profit",
		"ebitda", "has_ebitda", "operating_profit_row", "structure_type",
	}, names[len(headerNames):])

	values := fieldMap(r.Fields())
	assert.Equal(t, NoError, values["error_message"])
	assert.Equal(t, 120.0, values["operating_profit"])
}

func TestCombinedRecordFields(t *testing.T) {
	r := CombinedRecord{
		Scores: Scores{Total: 88},
		KPIs: []KPI{
			{Row: 2, Name: "Net Revenue", CleanName: "Net_Revenue", Perspective: PerspectiveFinancial, Value: 101.5},
			{Row: 14, Name: "HR Turnover", CleanName: "HR_Turnover", Perspective: PerspectiveLearningGrowth, Value: 97},
		},
	}
	names := fieldNames(r.Fields())
	tail := names[len(headerNames)+5:]
	assert.Equal(t, []string{
		"financial_net_revenue_ach",
		"learning_and_growth_hr_turnover_ach",
		"kpi_02_name", "kpi_02_value",
		"kpi_14_name", "kpi_14_value",
		"total_kpis_extracted",
	}, tail)
	assert.Equal(t, 2, fieldMap(r.Fields())["total_kpis_extracted"])
}

func TestErrorRecordMatchesModeColumns(t *testing.T) {
	head := RecordHeader{StoreName: "KG Mart Depok", ErrorMessage: "stability timeout"}

	fin := fieldMap(ErrorRecord{RecordHeader: head, Mode: ModeFinancial}.Fields())
	assert.Equal(t, StructureError, fin["structure_type"])
	assert.Equal(t, false, fin["has_ebitda"])
	assert.Equal(t, 0.0, fin["revenue"])
	assert.Equal(t, "stability timeout", fin["error_message"])

	scores := ErrorRecord{RecordHeader: head, Mode: ModeScores}.Fields()
	assert.Equal(t, fieldNames(ScoreRecord{}.Fields()), fieldNames(scores))

	all := fieldMap(ErrorRecord{RecordHeader: head, Mode: ModeAll}.Fields())
	assert.Equal(t, 0, all["total_kpis_extracted"])
	assert.Equal(t, 0.0, all["total_score"])
}

func TestMarshalKeepsFieldOrder(t *testing.T) {
	r := ScoreRecord{
		RecordHeader: RecordHeader{Regional: "B", StoreName: "KG Mart Cibubur", Year: 2025, Month: 1},
		Scores:       Scores{Financial: 90, Total: math.NaN()},
	}
	blob, err := json.Marshal(r)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(blob, []byte(`{"regional":"B","store_name":"KG Mart Cibubur","year":2025,"month":1,`)))
	assert.Contains(t, string(blob), `"total_score":0}`)

	back, err := DecodeFields(json.NewDecoder(bytes.NewReader(blob)))
	require.NoError(t, err)
	assert.Equal(t, fieldNames(r.Fields()), fieldNames(back))

	raw := RawRecord{Columns: back}
	h := raw.Head()
	assert.Equal(t, "KG Mart Cibubur", h.StoreName)
	assert.Equal(t, 2025, h.Year)
	assert.Equal(t, 1, h.Month)
	assert.Equal(t, NoError, h.ErrorMessage)

	again, err := json.Marshal(raw)
	require.NoError(t, err)
	assert.JSONEq(t, string(blob), string(again))
}
