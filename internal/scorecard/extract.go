package scorecard

import (
	"context"
	"log/slog"
	"time"

	"storekpi/internal"
	"storekpi/internal/browser"
	"storekpi/internal/retry"
	"storekpi/internal/util"
)

// Extractor reads scorecard cells of the currently selected store.
type Extractor struct {
	d     browser.Driver
	month int
	read  retry.Policy
	log   *slog.Logger
}

func NewExtractor(d browser.Driver, month int, settings Settings, log *slog.Logger) *Extractor {
	return &Extractor{d: d, month: month, read: settings.Read, log: log}
}

// Financial reads the fixed financial rows plus Operating Profit and EBITDA at
// the rows chosen by layout. The returned record has no header set.
func (x *Extractor) Financial(ctx context.Context, layout internal.LayoutDecision) internal.FinancialRecord {
	rec := internal.FinancialRecord{
		Revenue:            x.revenue(ctx),
		COGS:               x.row(ctx, "cogs", RowCOGS),
		COGSToRevenue:      x.row(ctx, "cogs_to_revenue", RowCOGSToRevenue),
		OpEx:               x.row(ctx, "opex", RowOpEx),
		OperatingProfit:    x.row(ctx, "operating_profit", layout.OperatingProfitRow),
		HasEBITDA:          layout.HasEBITDA,
		OperatingProfitRow: layout.OperatingProfitRow,
		StructureType:      layout.Structure,
	}
	if layout.HasEBITDA {
		rec.EBITDA = x.row(ctx, "ebitda", layout.EBITDARow)
	}
	return rec
}

// Scores reads the four perspective scores and the total.
func (x *Extractor) Scores(ctx context.Context) internal.Scores {
	return internal.Scores{
		Financial:               x.score(ctx, ScoreFinancial),
		Customer:                x.score(ctx, ScoreCustomer),
		InternalBusinessProcess: x.score(ctx, ScoreInternal),
		LearningAndGrowth:       x.score(ctx, ScoreLearning),
		Total:                   x.score(ctx, ScoreTotal),
	}
}

// KPIs scans the grid from the first KPI row and stops at the first row
// without a label.
func (x *Extractor) KPIs(ctx context.Context) []internal.KPI {
	var out []internal.KPI
	for row := FirstKPIRow; row <= LastKPIRow; row++ {
		label, err := browser.TextOf(ctx, x.d, browser.ByID(LabelID(row)))
		if err != nil || label == "" {
			x.log.Debug("end of scorecard", "row", row)
			break
		}
		raw, _ := x.text(ctx, browser.ByID(ValueID(row, x.month)))
		out = append(out, internal.KPI{
			Row:         row,
			Name:        label,
			CleanName:   util.CleanKPIName(label),
			Perspective: Classify(row, label),
			Value:       x.parse(label, raw),
			Raw:         raw,
		})
	}
	return out
}

// revenue populates last after a store switch, so an empty read is retried.
func (x *Extractor) revenue(ctx context.Context) float64 {
	selector := browser.ByID(ValueID(RowRevenue, x.month))
	raw, err := retry.Do(ctx, x.read,
		func(ctx context.Context) (string, error) { return browser.TextOf(ctx, x.d, selector) },
		func(s string) bool { return !util.IsBlank(s) },
		nil,
	)
	if err != nil {
		x.log.Warn("revenue not populated", "raw", raw, "err", err)
	}
	return x.parse("revenue", raw)
}

func (x *Extractor) row(ctx context.Context, field string, row int) float64 {
	raw, err := x.text(ctx, browser.ByID(ValueID(row, x.month)))
	if err != nil {
		x.log.Warn("cell unreadable", "field", field, "row", row, "err", err)
		return 0
	}
	return x.parse(field, raw)
}

func (x *Extractor) score(ctx context.Context, code string) float64 {
	raw, err := x.text(ctx, browser.ByID(ScoreID(code)))
	if err != nil {
		x.log.Warn("score unreadable", "score", code, "err", err)
		return 0
	}
	return x.parse(code, raw)
}

// text reads a cell, retrying lookups that miss or go stale.
func (x *Extractor) text(ctx context.Context, selector string) (string, error) {
	return retry.Do(ctx, x.read,
		func(ctx context.Context) (string, error) {
			text, err := browser.TextOf(ctx, x.d, selector)
			if err != nil && !browser.IsTransient(err) {
				return "", retry.Permanent(err)
			}
			return text, err
		},
		nil,
		func(err error, attempt int, _ time.Duration) {
			x.log.Debug("cell read retry", "selector", selector, "attempt", attempt, "err", err)
		},
	)
}

func (x *Extractor) parse(field, raw string) float64 {
	v, err := util.ParseAchievement(raw)
	if err != nil {
		x.log.Warn("value not numeric, using 0", "field", field, "raw", raw)
	}
	return v
}
