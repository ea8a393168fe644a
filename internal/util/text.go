package util

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reSpaces   = regexp.MustCompile(`\s+`)
	reNonWord  = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	fileUnsafe = strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", "\"", "_", " ", "_")
)

func NormalizeSpaces(input string) string {
	s := strings.ReplaceAll(input, "\u00A0", " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CleanKPIName turns a KPI label into a column-safe token:
// punctuation is dropped and whitespace runs become underscores.
func CleanKPIName(name string) string {
	s := reNonWord.ReplaceAllString(name, "")
	s = strings.TrimSpace(s)
	return reSpaces.ReplaceAllString(s, "_")
}

// Tokenize splits text into lower-case letter/digit runs.
func Tokenize(input string) []string {
	return strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func SanitizeFilename(input string) string {
	out := fileUnsafe.Replace(strings.TrimSpace(input))
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}

// KeywordMatcher finds whole-word, case-insensitive occurrences of any of a
// set of keywords. Word boundaries are only enforced on keyword edges that
// are word characters, so "(Tutup)" still matches inside "Store A (Tutup)".
type KeywordMatcher struct {
	keywords []string
	patterns []*regexp.Regexp
}

func NewKeywordMatcher(keywords []string) *KeywordMatcher {
	m := &KeywordMatcher{}
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		expr := regexp.QuoteMeta(kw)
		if isWordRune(firstRune(kw)) {
			expr = `\b` + expr
		}
		if isWordRune(lastRune(kw)) {
			expr += `\b`
		}
		m.keywords = append(m.keywords, kw)
		m.patterns = append(m.patterns, regexp.MustCompile(`(?i)`+expr))
	}
	return m
}

// Match returns the first keyword found in text.
func (m *KeywordMatcher) Match(text string) (string, bool) {
	if m == nil {
		return "", false
	}
	for i, p := range m.patterns {
		if p.MatchString(text) {
			return m.keywords[i], true
		}
	}
	return "", false
}

func isWordRune(r rune) bool {
	return r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func lastRune(s string) rune {
	r := []rune(s)
	if len(r) == 0 {
		return 0
	}
	return r[len(r)-1]
}
