package scorecard

import (
	"strings"

	"storekpi/internal"
	"storekpi/internal/util"
)

var perspectiveKeywords = []struct {
	perspective internal.Perspective
	keywords    []string
}{
	{internal.PerspectiveFinancial, []string{"revenue", "cogs", "profit", "expense"}},
	{internal.PerspectiveCustomer, []string{"customer", "satisfaction", "stock", "fulfillment", "sales"}},
	{internal.PerspectiveInternalBusiness, []string{"productivity", "conversion", "fraud"}},
	{internal.PerspectiveLearningGrowth, []string{"learning", "growth", "hr"}},
}

// Classify buckets a KPI row into a scorecard perspective. The first rows of
// the grid are always financial; otherwise a label word starting with one of
// the perspective keywords decides, checked in perspective order.
func Classify(row int, label string) internal.Perspective {
	if row <= RowA {
		return internal.PerspectiveFinancial
	}
	tokens := util.Tokenize(label)
	for _, group := range perspectiveKeywords {
		for _, kw := range group.keywords {
			for _, tok := range tokens {
				if strings.HasPrefix(tok, kw) {
					return group.perspective
				}
			}
		}
	}
	return internal.PerspectiveOther
}
