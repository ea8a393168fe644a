package scorecard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storekpi/internal/browser"
	"storekpi/internal/logging"
	"storekpi/internal/retry"
	"storekpi/internal/scorecard/scorecardtest"
)

const (
	testMonth     = 9
	testContainer = "ctl00_ContentPlaceHolder1_OrganizationTreeView1_tvHierarchyn22Nodes"
)

var testLog = logging.Discard()

func testSettings() Settings {
	return Settings{
		PollInterval:     time.Millisecond,
		StabilityTimeout: 50 * time.Millisecond,
		StableReads:      3,
		ElementWait:      20 * time.Millisecond,
		Select:           retry.Policy{Attempts: 2},
		Locate:           retry.Policy{Attempts: 3},
		Enumerate:        retry.Policy{Attempts: 3},
		Read:             retry.Policy{Attempts: 3},
		SkipKeywords:     []string{"tutup", "renovasi", "closed", "(Tutup)", "under renovation"},
	}
}

func testRegionals() map[string]string {
	return map[string]string{"A": testContainer}
}

func tree(links ...string) []scorecardtest.Tree {
	return []scorecardtest.Tree{{ContainerID: testContainer, Links: links}}
}

func newSnapshot(t *testing.T, pages map[string]scorecardtest.Page) *browser.Snapshot {
	t.Helper()
	raw := make(map[string]string, len(pages))
	for name, p := range pages {
		if p.Month == 0 {
			p.Month = testMonth
		}
		raw[name] = p.HTML()
	}
	s, err := browser.NewSnapshot(raw)
	require.NoError(t, err)
	return s
}
