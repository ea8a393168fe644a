package util

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Placeholder is what the scorecard renders in cells that have no data yet.
const Placeholder = "-"

var ErrNotNumeric = errors.New("not a numeric value")

// ParseAchievement converts a scorecard cell to a number. Empty cells and the
// placeholder read as 0 without error; anything else that does not parse reads
// as 0 with ErrNotNumeric so the caller can log it.
func ParseAchievement(input string) (float64, error) {
	s := NormalizeSpaces(input)
	if IsBlank(s) {
		return 0, nil
	}
	parsed, err := strconv.ParseFloat(normalizeNumericToken(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, input)
	}
	return parsed, nil
}

// IsBlank reports whether a cell text carries no value.
func IsBlank(text string) bool {
	s := strings.TrimSpace(text)
	return s == "" || s == Placeholder
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	compact = strings.ReplaceAll(compact, ",", "")
	compact = strings.TrimSuffix(compact, "%")
	if len(compact) > 2 && strings.HasPrefix(compact, "(") && strings.HasSuffix(compact, ")") {
		compact = "-" + compact[1:len(compact)-1]
	}
	return compact
}
