package scorecard

import (
	"fmt"

	"storekpi/internal"
	"storekpi/internal/browser"
)

// Scorecard grid rows. The grid renders one row group per KPI as ctlNN.
const (
	RowRevenue       = 2
	RowCOGS          = 3
	RowCOGSToRevenue = 4
	RowOpEx          = 5
	RowA             = 6
	RowB             = 7

	FirstKPIRow = 2
	LastKPIRow  = 22
)

const (
	StoreLinkSelector = "a[class*='NodeStyle']"
	ManagerPrefix     = "RM -"
	OperatingProfit   = "Operating Profit"
)

// Score label suffixes, one per perspective plus the total.
const (
	ScoreFinancial = "F"
	ScoreCustomer  = "CS"
	ScoreInternal  = "IBP"
	ScoreLearning  = "LG"
	ScoreTotal     = "Total"
)

func LabelID(row int) string {
	return fmt.Sprintf("ctl00_ContentPlaceHolder1_grvScorecard_ctl%02d_lblKPI", row)
}

// ValueID is the YTD achievement cell of a row. The month is not zero padded.
func ValueID(row, month int) string {
	return fmt.Sprintf("ctl00_ContentPlaceHolder1_grvScorecard_ctl%02d_lblYTDAchievement%d", row, month)
}

func ScoreID(code string) string {
	return "ctl00_ContentPlaceHolder1_lblAchievementYTD_" + code
}

// Witness returns the selector polled for stability after a store click and
// a secondary selector logged once the witness settles.
func Witness(mode internal.Mode, month int) (witness, secondary string) {
	if mode == internal.ModeScores {
		return browser.ByID(ScoreID(ScoreTotal)), browser.ByID(ScoreID(ScoreFinancial))
	}
	return browser.ByID(ValueID(RowRevenue, month)), browser.ByID(ValueID(RowCOGS, month))
}
