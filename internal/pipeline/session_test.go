package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storekpi/internal"
	"storekpi/internal/browser"
	"storekpi/internal/config"
	"storekpi/internal/logging"
	"storekpi/internal/scorecard/scorecardtest"
)

const (
	testMonth     = 9
	testYear      = 2025
	testContainer = "ctl00_ContentPlaceHolder1_OrganizationTreeView1_tvHierarchyn22Nodes"
)

var fixedNow = time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	return config.Config{
		BaseURL:           "https://pmo.example.test",
		ElementWait:       20 * time.Millisecond,
		PageTimeout:       30 * time.Millisecond,
		PollInterval:      time.Millisecond,
		StabilityTimeout:  40 * time.Millisecond,
		StableReads:       3,
		SelectAttempts:    2,
		LocateAttempts:    2,
		EnumerateAttempts: 2,
		ModalAttempts:     1,
		ReadAttempts:      2,
		SkipKeywords:      []string{"tutup", "renovasi"},
		RegionalNodes:     map[string]string{"A": testContainer},
	}
}

func storeTree() []scorecardtest.Tree {
	return []scorecardtest.Tree{{
		ContainerID: testContainer,
		Links: []string{
			"RM - Budi Santoso",
			"KG Mart Bogor",
			"KG Mart Depok",
			"KG Mart Cibinong (Tutup)",
			"KG Mart Bekasi",
		},
	}}
}

func ebitdaRows() map[int]scorecardtest.Row {
	return map[int]scorecardtest.Row{
		2: {Label: "Revenue", Value: "2,500"},
		3: {Label: "COGS", Value: "1,500"},
		4: {Label: "COGS to Revenue", Value: "60%"},
		5: {Label: "Operating Expense", Value: "1,050"},
		6: {Label: "EBITDA", Value: "300"},
		7: {Label: "Operating Profit", Value: "(50)"},
	}
}

func storePages() map[string]scorecardtest.Page {
	trees := storeTree()
	return map[string]scorecardtest.Page{
		browser.IndexPage: {
			Trees: trees,
			Rows:  scorecardtest.FinancialRows("-", "-", "-", "-", "-"),
		},
		browser.PageName("KG Mart Bogor"): {
			Trees:  trees,
			Rows:   scorecardtest.FinancialRows("1,000", "650", "65%", "200", "150"),
			Scores: scorecardtest.Scores("92.5", "80", "75.25", "100", "86.94"),
		},
		// Depok never finishes loading.
		browser.PageName("KG Mart Depok"): {
			Trees:  trees,
			Rows:   scorecardtest.FinancialRows("-", "-", "-", "-", "-"),
			Scores: scorecardtest.Scores("-", "-", "-", "-", ""),
		},
		browser.PageName("KG Mart Bekasi"): {
			Trees:  trees,
			Rows:   ebitdaRows(),
			Scores: scorecardtest.Scores("70", "60", "50", "40", "55"),
		},
	}
}

func snapshotOf(t *testing.T, pages map[string]scorecardtest.Page) *browser.Snapshot {
	t.Helper()
	raw := make(map[string]string, len(pages))
	for name, p := range pages {
		p.Month = testMonth
		raw[name] = p.HTML()
	}
	snap, err := browser.NewSnapshot(raw)
	require.NoError(t, err)
	return snap
}

func newTestSession(d browser.Driver) *Session {
	s := NewSession(d, testConfig(), logging.Discard())
	s.now = func() time.Time { return fixedNow }
	return s
}

func fieldsOf(r internal.Record) map[string]any {
	out := map[string]any{}
	for _, f := range r.Fields() {
		out[f.Name] = f.Value
	}
	return out
}

func TestRunPassFinancialContinuesPastFailedStore(t *testing.T) {
	snap := snapshotOf(t, storePages())
	s := newTestSession(snap)

	records, err := s.RunPass(context.Background(), internal.ModeFinancial, []string{"A"}, testYear, testMonth)
	require.NoError(t, err)
	require.Len(t, records, 3)

	bogor, ok := records[0].(internal.FinancialRecord)
	require.True(t, ok, "got %T", records[0])
	assert.Equal(t, "KG Mart Bogor", bogor.StoreName)
	assert.Equal(t, "A", bogor.Regional)
	assert.Equal(t, 1000.0, bogor.Revenue)
	assert.Equal(t, 650.0, bogor.COGS)
	assert.Equal(t, 65.0, bogor.COGSToRevenue)
	assert.Equal(t, 150.0, bogor.OperatingProfit)
	assert.False(t, bogor.HasEBITDA)
	assert.Equal(t, internal.StructureNoEBITDA, bogor.StructureType)
	assert.Equal(t, MethodSinglePass, bogor.ExtractionMethod)
	assert.Equal(t, "2025-10-01T08:00:00Z", bogor.ExtractionTimestamp)
	assert.Equal(t, internal.NoError, fieldsOf(bogor)["error_message"])

	depok, ok := records[1].(internal.ErrorRecord)
	require.True(t, ok, "got %T", records[1])
	assert.Equal(t, "KG Mart Depok", depok.StoreName)
	assert.Equal(t, MethodError, depok.ExtractionMethod)
	assert.Contains(t, depok.ErrorMessage, "select store")
	depokFields := fieldsOf(depok)
	assert.Equal(t, 0.0, depokFields["revenue"])
	assert.Equal(t, internal.StructureError, depokFields["structure_type"])

	bekasi, ok := records[2].(internal.FinancialRecord)
	require.True(t, ok, "got %T", records[2])
	assert.True(t, bekasi.HasEBITDA)
	assert.Equal(t, 7, bekasi.OperatingProfitRow)
	assert.Equal(t, 300.0, bekasi.EBITDA)
	assert.Equal(t, -50.0, bekasi.OperatingProfit)
	assert.Equal(t, internal.StructureHasEBITDA, bekasi.StructureType)

	assert.Len(t, s.Results(), 3)
	assert.NotContains(t, snap.Clicks, "native:KG Mart Cibinong (Tutup)")
	assert.NotContains(t, snap.Clicks, "native:RM - Budi Santoso")
}

func TestRunPassRecordsStoresWhenTreeCannotReopen(t *testing.T) {
	pages := storePages()
	bogor := pages[browser.PageName("KG Mart Bogor")]
	bogor.Trees = nil
	pages[browser.PageName("KG Mart Bogor")] = bogor
	s := newTestSession(snapshotOf(t, pages))

	records, err := s.RunPass(context.Background(), internal.ModeFinancial, []string{"A"}, testYear, testMonth)
	require.NoError(t, err)
	require.Len(t, records, 3)

	_, ok := records[0].(internal.FinancialRecord)
	assert.True(t, ok, "got %T", records[0])
	for i, name := range []string{"KG Mart Depok", "KG Mart Bekasi"} {
		rec, ok := records[i+1].(internal.ErrorRecord)
		require.True(t, ok, "got %T", records[i+1])
		assert.Equal(t, name, rec.StoreName)
		assert.Equal(t, MethodError, rec.ExtractionMethod)
		assert.Contains(t, rec.ErrorMessage, "organization tree unavailable")
		assert.Equal(t, "2025-10-01T08:00:00Z", rec.ExtractionTimestamp)
		assert.Equal(t, internal.StructureError, fieldsOf(rec)["structure_type"])
	}
}

func TestRunPassScores(t *testing.T) {
	s := newTestSession(snapshotOf(t, storePages()))

	records, err := s.RunPass(context.Background(), internal.ModeScores, []string{"A"}, testYear, testMonth)
	require.NoError(t, err)
	require.Len(t, records, 3)

	bogor := records[0].(internal.ScoreRecord)
	assert.Equal(t, internal.Scores{Financial: 92.5, Customer: 80, InternalBusinessProcess: 75.25, LearningAndGrowth: 100, Total: 86.94}, bogor.Scores)
	assert.Equal(t, "scores", bogor.ExtractionType)

	_, failed := records[1].(internal.ErrorRecord)
	assert.True(t, failed)
	assert.Equal(t, 55.0, records[2].(internal.ScoreRecord).Total)
}

func TestRunPassAllBuildsCombinedRecords(t *testing.T) {
	s := newTestSession(snapshotOf(t, storePages()))

	records, err := s.RunPass(context.Background(), internal.ModeAll, []string{"A"}, testYear, testMonth)
	require.NoError(t, err)
	require.Len(t, records, 3)

	bekasi := records[2].(internal.CombinedRecord)
	require.Len(t, bekasi.KPIs, 6)
	assert.Equal(t, "EBITDA", bekasi.KPIs[4].Name)
	assert.Equal(t, internal.PerspectiveFinancial, bekasi.KPIs[5].Perspective)
	assert.Equal(t, -50.0, bekasi.KPIs[5].Value)

	f := fieldsOf(bekasi)
	assert.Equal(t, 6, f["total_kpis_extracted"])
	assert.Equal(t, "Operating Profit", f["kpi_07_name"])
	assert.Equal(t, 2500.0, f["financial_revenue_ach"])

	assert.Equal(t, 0, fieldsOf(records[1])["total_kpis_extracted"])
}

func TestRunPassUnknownRegionalYieldsNothing(t *testing.T) {
	s := newTestSession(snapshotOf(t, storePages()))

	records, err := s.RunPass(context.Background(), internal.ModeFinancial, []string{"Z"}, testYear, testMonth)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRunPassStopsWhenCancelled(t *testing.T) {
	s := newTestSession(snapshotOf(t, storePages()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := s.RunPass(ctx, internal.ModeFinancial, []string{"A"}, testYear, testMonth)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, records)
}

func TestDumpedPagesReplay(t *testing.T) {
	trees := []scorecardtest.Tree{{ContainerID: testContainer, Links: []string{"KG Mart Bogor", "KG Mart Bekasi"}}}
	pages := storePages()
	delete(pages, browser.PageName("KG Mart Depok"))
	for name, p := range pages {
		p.Trees = trees
		pages[name] = p
	}
	dir := t.TempDir()

	live := newTestSession(snapshotOf(t, pages))
	live.DumpDir = dir
	first, err := live.RunPass(context.Background(), internal.ModeFinancial, []string{"A"}, testYear, testMonth)
	require.NoError(t, err)
	require.Len(t, first, 2)

	assert.FileExists(t, filepath.Join(dir, "index.html"))
	assert.FileExists(t, filepath.Join(dir, browser.PageName("KG Mart Bogor")+".html"))
	assert.FileExists(t, filepath.Join(dir, browser.PageName("KG Mart Bekasi")+".html"))

	snap, err := browser.LoadSnapshotDir(dir)
	require.NoError(t, err)
	replayed, err := newTestSession(snap).RunPass(context.Background(), internal.ModeFinancial, []string{"A"}, testYear, testMonth)
	require.NoError(t, err)
	require.Len(t, replayed, len(first))
	for i := range first {
		assert.Equal(t, first[i].Fields(), replayed[i].Fields())
	}
}
