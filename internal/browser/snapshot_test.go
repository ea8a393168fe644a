package browser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexHTML = `<html><body>
<div id="menu:submenu:16"><a href="Dashboard.aspx">Dashboard</a></div>
<div id="tree"><a class="TreeNodeStyle">KG Mart Bogor</a><a class="TreeNodeStyle">KG Mart Depok</a></div>
<span id="cell">-</span>
</body></html>`

const bogorHTML = `<html><body>
<div id="tree"><a class="TreeNodeStyle">KG Mart Bogor</a><a class="TreeNodeStyle">KG Mart Depok</a></div>
<span id="cell">1,234.50</span>
</body></html>`

func newTestSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	s, err := NewSnapshot(map[string]string{
		IndexPage:                indexHTML,
		PageName("KG Mart Bogor"): bogorHTML,
	})
	require.NoError(t, err)
	return s
}

func TestByIDHandlesColons(t *testing.T) {
	ctx := context.Background()
	s := newTestSnapshot(t)

	assert.Equal(t, `[id="menu:submenu:16"]`, ByID("menu:submenu:16"))
	el, err := s.Find(ctx, ByID("menu:submenu:16"))
	require.NoError(t, err)
	links, err := el.FindAll(ctx, "a[href='Dashboard.aspx']")
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestFindMissing(t *testing.T) {
	s := newTestSnapshot(t)
	_, err := s.Find(context.Background(), ByID("nope"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClickSwitchesPageAndStalesElements(t *testing.T) {
	ctx := context.Background()
	s := newTestSnapshot(t)

	cell, err := s.Find(ctx, ByID("cell"))
	require.NoError(t, err)

	links, err := s.FindAll(ctx, "a[class*='NodeStyle']")
	require.NoError(t, err)
	require.Len(t, links, 2)

	method, err := ClickWithFallback(ctx, links[0], nil)
	require.NoError(t, err)
	assert.Equal(t, "native", method)
	assert.Equal(t, PageName("KG Mart Bogor"), s.Page())

	_, err = cell.Text(ctx)
	require.ErrorIs(t, err, ErrStale)

	text, err := TextOf(ctx, s, ByID("cell"))
	require.NoError(t, err)
	assert.Equal(t, "1,234.50", text)
}

func TestClickWithFallbackUsesScriptClick(t *testing.T) {
	ctx := context.Background()
	s := newTestSnapshot(t)
	s.InterceptClicks = map[string]bool{"KG Mart Bogor": true}

	link, err := s.Find(ctx, "a[class*='NodeStyle']")
	require.NoError(t, err)

	method, err := ClickWithFallback(ctx, link, nil)
	require.NoError(t, err)
	assert.Equal(t, "script", method)
	assert.Equal(t, []string{"script:KG Mart Bogor"}, s.Clicks)
	assert.Equal(t, PageName("KG Mart Bogor"), s.Page())
}

func TestWaitForTimesOut(t *testing.T) {
	s := newTestSnapshot(t)
	start := time.Now()
	_, err := WaitFor(context.Background(), s, ByID("never"), 30*time.Millisecond, 5*time.Millisecond)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Less(t, time.Since(start), time.Second)
}

func TestEvaluateOuterHTML(t *testing.T) {
	s := newTestSnapshot(t)
	var html string
	require.NoError(t, s.Evaluate(context.Background(), OuterHTMLExpr, &html))
	assert.Contains(t, html, `id="cell"`)
}

func TestVisible(t *testing.T) {
	ctx := context.Background()
	s, err := NewSnapshot(map[string]string{IndexPage: `<html><body>
<div id="modal" style="display: none"><input value="Close" id="hidden-close"></div>
<input value="Close" id="shown-close">
</body></html>`})
	require.NoError(t, err)

	hidden, err := s.Find(ctx, ByID("hidden-close"))
	require.NoError(t, err)
	assert.False(t, Visible(ctx, hidden))

	shown, err := s.Find(ctx, ByID("shown-close"))
	require.NoError(t, err)
	assert.True(t, Visible(ctx, shown))
}

func TestLoadSnapshotDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(indexHTML), 0o644))
	s, err := LoadSnapshotDir(dir)
	require.NoError(t, err)
	assert.Equal(t, IndexPage, s.Page())

	_, err = LoadSnapshotDir(t.TempDir())
	require.Error(t, err)
}

func TestClassify(t *testing.T) {
	err := classify(errors.New("could not find node with given id (-32000)"))
	assert.ErrorIs(t, err, ErrStale)
	assert.True(t, IsTransient(err))

	plain := errors.New("net::ERR_CONNECTION_RESET")
	assert.Equal(t, plain, classify(plain))
	assert.ErrorIs(t, classify(context.Canceled), context.Canceled)
}
