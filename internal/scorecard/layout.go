package scorecard

import (
	"context"
	"log/slog"
	"strings"

	"storekpi/internal"
	"storekpi/internal/browser"
)

// DetectLayout decides which grid row holds Operating Profit. Stores that
// report EBITDA push Operating Profit down from row A to row B. When neither
// label can be read the store is treated as having no EBITDA row.
func DetectLayout(ctx context.Context, d browser.Driver, log *slog.Logger) internal.LayoutDecision {
	labelA := readLabel(ctx, d, RowA)
	labelB := readLabel(ctx, d, RowB)

	var decision internal.LayoutDecision
	switch {
	case isOperatingProfit(labelA):
		decision = internal.LayoutDecision{OperatingProfitRow: RowA, Structure: internal.StructureNoEBITDA}
	case isOperatingProfit(labelB):
		decision = internal.LayoutDecision{OperatingProfitRow: RowB, EBITDARow: RowA, HasEBITDA: true, Structure: internal.StructureHasEBITDA}
	default:
		decision = internal.LayoutDecision{OperatingProfitRow: RowA, Structure: internal.StructureFallback}
		log.Warn("layout not recognised, assuming no EBITDA", "row_a", labelA, "row_b", labelB)
	}
	log.Debug("layout detected", "structure", decision.Structure, "row_a", labelA, "row_b", labelB)
	return decision
}

func readLabel(ctx context.Context, d browser.Driver, row int) string {
	text, err := browser.TextOf(ctx, d, browser.ByID(LabelID(row)))
	if err != nil {
		return ""
	}
	return text
}

func isOperatingProfit(label string) bool {
	return strings.Contains(strings.ToLower(label), strings.ToLower(OperatingProfit))
}
