package internal

import (
	"fmt"
	"strings"
)

type Mode string

const (
	ModeFinancial Mode = "financial"
	ModeScores    Mode = "scores"
	ModeBoth      Mode = "both"
	ModeAll       Mode = "all"
)

// NoError is the error_message value carried by successful records.
const NoError = "None"

func ParseMode(input string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(input))); m {
	case ModeFinancial, ModeScores, ModeBoth, ModeAll:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", input)
	}
}

// Passes lists the extraction passes a mode runs, in order.
func (m Mode) Passes() []Mode {
	if m == ModeBoth {
		return []Mode{ModeFinancial, ModeScores}
	}
	return []Mode{m}
}

type StoreDescriptor struct {
	Name          string
	RegionalID    string
	PositionIndex int
}

type LayoutDecision struct {
	OperatingProfitRow int
	EBITDARow          int
	HasEBITDA          bool
	Structure          string
}

const (
	StructureNoEBITDA  = "no_ebitda_op_at_06"
	StructureHasEBITDA = "has_ebitda_op_at_07"
	StructureFallback  = "fallback_no_ebitda"
	StructureError     = "error"
)

type Perspective string

const (
	PerspectiveFinancial        Perspective = "Financial"
	PerspectiveCustomer         Perspective = "Customer"
	PerspectiveInternalBusiness Perspective = "Internal_Business_Process"
	PerspectiveLearningGrowth   Perspective = "Learning_and_Growth"
	PerspectiveOther            Perspective = "Other"
)

type Scores struct {
	Financial               float64
	Customer                float64
	InternalBusinessProcess float64
	LearningAndGrowth       float64
	Total                   float64
}

type KPI struct {
	Row         int
	Name        string
	CleanName   string
	Perspective Perspective
	Value       float64
	Raw         string
}

type Field struct {
	Name  string
	Value any
}

// Record is one extracted store row. Every variant exposes the same header
// followed by its mode-specific columns in a stable order.
type Record interface {
	Head() RecordHeader
	Fields() []Field
}

type RecordHeader struct {
	Regional            string
	StoreName           string
	Year                int
	Month               int
	ExtractionType      string
	ExtractionMethod    string
	ErrorMessage        string
	ExtractionTimestamp string
}

func (h RecordHeader) Head() RecordHeader { return h }

func (h RecordHeader) fields() []Field {
	msg := h.ErrorMessage
	if msg == "" {
		msg = NoError
	}
	return []Field{
		{"regional", h.Regional},
		{"store_name", h.StoreName},
		{"year", h.Year},
		{"month", h.Month},
		{"extraction_type", h.ExtractionType},
		{"extraction_method", h.ExtractionMethod},
		{"error_message", msg},
		{"extraction_timestamp", h.ExtractionTimestamp},
	}
}

type FinancialRecord struct {
	RecordHeader
	Revenue            float64
	COGS               float64
	COGSToRevenue      float64
	OpEx               float64
	OperatingProfit    float64
	EBITDA             float64
	HasEBITDA          bool
	OperatingProfitRow int
	StructureType      string
}

func (r FinancialRecord) Fields() []Field {
	return append(r.RecordHeader.fields(),
		Field{"revenue", r.Revenue},
		Field{"cogs", r.COGS},
		Field{"cogs_to_revenue", r.COGSToRevenue},
		Field{"opex", r.OpEx},
		Field{"operating_profit", r.OperatingProfit},
		Field{"ebitda", r.EBITDA},
		Field{"has_ebitda", r.HasEBITDA},
		Field{"operating_profit_row", r.OperatingProfitRow},
		Field{"structure_type", r.StructureType},
	)
}

func (r FinancialRecord) MarshalJSON() ([]byte, error) { return MarshalFields(r.Fields()) }

type ScoreRecord struct {
	RecordHeader
	Scores
}

func (r ScoreRecord) Fields() []Field {
	return append(r.RecordHeader.fields(), r.Scores.fields()...)
}

func (r ScoreRecord) MarshalJSON() ([]byte, error) { return MarshalFields(r.Fields()) }

func (s Scores) fields() []Field {
	return []Field{
		{"financial_score", s.Financial},
		{"customer_score", s.Customer},
		{"internal_business_process_score", s.InternalBusinessProcess},
		{"learning_and_growth_score", s.LearningAndGrowth},
		{"total_score", s.Total},
	}
}

type CombinedRecord struct {
	RecordHeader
	Scores
	KPIs []KPI
}

func (r CombinedRecord) Fields() []Field {
	out := append(r.RecordHeader.fields(), r.Scores.fields()...)
	for _, k := range r.KPIs {
		out = append(out, Field{AchievementColumn(k.Perspective, k.CleanName), k.Value})
	}
	for _, k := range r.KPIs {
		out = append(out,
			Field{fmt.Sprintf("kpi_%02d_name", k.Row), k.Name},
			Field{fmt.Sprintf("kpi_%02d_value", k.Row), k.Value},
		)
	}
	return append(out, Field{"total_kpis_extracted", len(r.KPIs)})
}

func (r CombinedRecord) MarshalJSON() ([]byte, error) { return MarshalFields(r.Fields()) }

// AchievementColumn names the per-KPI column of a combined record,
// e.g. "financial_net_revenue_ach".
func AchievementColumn(p Perspective, cleanName string) string {
	return strings.ToLower(string(p) + "_" + cleanName + "_ach")
}

// ErrorRecord stands in for a store whose extraction failed. It emits the
// same columns as the mode it failed in, zero filled.
type ErrorRecord struct {
	RecordHeader
	Mode Mode
}

func (r ErrorRecord) Fields() []Field {
	switch r.Mode {
	case ModeFinancial:
		return FinancialRecord{RecordHeader: r.RecordHeader, StructureType: StructureError}.Fields()
	case ModeScores:
		return ScoreRecord{RecordHeader: r.RecordHeader}.Fields()
	default:
		return CombinedRecord{RecordHeader: r.RecordHeader}.Fields()
	}
}

func (r ErrorRecord) MarshalJSON() ([]byte, error) { return MarshalFields(r.Fields()) }

// RawRecord is a record read back from a saved file; it keeps the columns as
// they were written.
type RawRecord struct {
	Columns []Field
}

func (r RawRecord) Fields() []Field { return r.Columns }

func (r RawRecord) MarshalJSON() ([]byte, error) { return MarshalFields(r.Columns) }

func (r RawRecord) Head() RecordHeader {
	var h RecordHeader
	for _, f := range r.Columns {
		switch f.Name {
		case "regional":
			h.Regional = fmt.Sprint(f.Value)
		case "store_name":
			h.StoreName = fmt.Sprint(f.Value)
		case "year":
			h.Year = asInt(f.Value)
		case "month":
			h.Month = asInt(f.Value)
		case "extraction_type":
			h.ExtractionType = fmt.Sprint(f.Value)
		case "extraction_method":
			h.ExtractionMethod = fmt.Sprint(f.Value)
		case "error_message":
			h.ErrorMessage = fmt.Sprint(f.Value)
		case "extraction_timestamp":
			h.ExtractionTimestamp = fmt.Sprint(f.Value)
		}
	}
	return h
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
