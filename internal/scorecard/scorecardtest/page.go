// Package scorecardtest renders dashboard pages for snapshot-driven tests.
package scorecardtest

import (
	"fmt"
	"html"
	"sort"
	"strings"
)

const (
	labelIDFormat = "ctl00_ContentPlaceHolder1_grvScorecard_ctl%02d_lblKPI"
	valueIDFormat = "ctl00_ContentPlaceHolder1_grvScorecard_ctl%02d_lblYTDAchievement%d"
	scoreIDPrefix = "ctl00_ContentPlaceHolder1_lblAchievementYTD_"
)

type Tree struct {
	ContainerID string
	Links       []string
}

type Row struct {
	Label string
	Value string
}

// Page is one rendering of the dashboard: the organization tree plus the
// scorecard of whichever store is selected.
type Page struct {
	Trees  []Tree
	Month  int
	Rows   map[int]Row
	Scores map[string]string
}

func (p Page) HTML() string {
	var b strings.Builder
	b.WriteString("<html><body>\n")
	for _, t := range p.Trees {
		fmt.Fprintf(&b, "<div id=\"%s\"><table>\n", html.EscapeString(t.ContainerID))
		for i, name := range t.Links {
			fmt.Fprintf(&b, "<tr><td><a class=\"ctl00_tvHierarchy_%d TreeNodeStyle\" href=\"#\">%s</a></td></tr>\n", i, html.EscapeString(name))
		}
		b.WriteString("</table></div>\n")
	}

	rows := make([]int, 0, len(p.Rows))
	for n := range p.Rows {
		rows = append(rows, n)
	}
	sort.Ints(rows)
	b.WriteString("<table id=\"ctl00_ContentPlaceHolder1_grvScorecard\">\n")
	for _, n := range rows {
		r := p.Rows[n]
		fmt.Fprintf(&b, "<tr><td><span id=\"%s\">%s</span></td><td><span id=\"%s\">%s</span></td></tr>\n",
			fmt.Sprintf(labelIDFormat, n), html.EscapeString(r.Label),
			fmt.Sprintf(valueIDFormat, n, p.Month), html.EscapeString(r.Value))
	}
	b.WriteString("</table>\n")

	codes := make([]string, 0, len(p.Scores))
	for c := range p.Scores {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	for _, c := range codes {
		fmt.Fprintf(&b, "<span id=\"%s%s\">%s</span>\n", scoreIDPrefix, c, html.EscapeString(p.Scores[c]))
	}
	b.WriteString("</body></html>\n")
	return b.String()
}

// FinancialRows builds the rows of a store without an EBITDA line.
func FinancialRows(revenue, cogs, ratio, opex, profit string) map[int]Row {
	return map[int]Row{
		2: {Label: "Revenue", Value: revenue},
		3: {Label: "COGS", Value: cogs},
		4: {Label: "COGS to Revenue", Value: ratio},
		5: {Label: "Operating Expense", Value: opex},
		6: {Label: "Operating Profit (Store)", Value: profit},
	}
}

// Scores builds the five score cells in F, CS, IBP, LG, Total order.
func Scores(values ...string) map[string]string {
	codes := []string{"F", "CS", "IBP", "LG", "Total"}
	out := make(map[string]string, len(codes))
	for i, c := range codes {
		if i < len(values) {
			out[c] = values[i]
		}
	}
	return out
}
