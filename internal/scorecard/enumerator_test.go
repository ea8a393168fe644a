package scorecard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storekpi/internal/browser"
	"storekpi/internal/scorecard/scorecardtest"
)

func TestListStoresFiltersManagersAndClosedStores(t *testing.T) {
	snap := newSnapshot(t, map[string]scorecardtest.Page{
		browser.IndexPage: {Trees: tree(
			"RM - Budi Santoso",
			"KG Mart Bogor",
			"KG Mart Depok (Tutup)",
			"KG Mart Cibubur RENOVASI",
			"KG Mart Tutupan",
			"KG Mart Bekasi Closed",
		)},
	})
	enum := NewEnumerator(snap, testRegionals(), testSettings(), testLog)

	listing, err := enum.List(context.Background(), "A")
	require.NoError(t, err)

	require.Len(t, listing.Stores, 2)
	assert.Equal(t, "KG Mart Bogor", listing.Stores[0].Name)
	assert.Equal(t, 0, listing.Stores[0].PositionIndex)
	assert.Equal(t, "KG Mart Tutupan", listing.Stores[1].Name)
	assert.Equal(t, 1, listing.Stores[1].PositionIndex)
	assert.Equal(t, "A", listing.Stores[1].RegionalID)

	skipped := map[string]string{}
	for _, s := range listing.Skipped {
		skipped[s.Name] = s.Keyword
	}
	assert.Len(t, skipped, 3)
	assert.Contains(t, skipped, "KG Mart Depok (Tutup)")
	assert.Equal(t, "renovasi", skipped["KG Mart Cibubur RENOVASI"])
	assert.Equal(t, "closed", skipped["KG Mart Bekasi Closed"])
}

func TestListStoresMissingContainer(t *testing.T) {
	snap := newSnapshot(t, map[string]scorecardtest.Page{browser.IndexPage: {}})
	enum := NewEnumerator(snap, testRegionals(), testSettings(), testLog)

	_, err := enum.List(context.Background(), "A")
	require.ErrorIs(t, err, ErrContainerMissing)
	assert.Empty(t, enum.ListStores(context.Background(), "A"))
}

func TestListStoresUnknownRegional(t *testing.T) {
	snap := newSnapshot(t, map[string]scorecardtest.Page{browser.IndexPage: {Trees: tree("KG Mart Bogor")}})
	enum := NewEnumerator(snap, testRegionals(), testSettings(), testLog)

	_, err := enum.List(context.Background(), "Z")
	require.ErrorIs(t, err, ErrUnknownRegional)
}

func TestListStoresEmptyContainer(t *testing.T) {
	snap := newSnapshot(t, map[string]scorecardtest.Page{browser.IndexPage: {Trees: tree("RM - Only Manager")}})
	enum := NewEnumerator(snap, testRegionals(), testSettings(), testLog)

	listing, err := enum.List(context.Background(), "A")
	require.NoError(t, err)
	assert.Empty(t, listing.Stores)
	assert.Empty(t, listing.Skipped)
}
