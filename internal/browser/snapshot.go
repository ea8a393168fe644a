package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"storekpi/internal/util"
)

// IndexPage is the snapshot page shown before any store is clicked.
const IndexPage = "index"

var errUnsupported = errors.New("not supported by snapshot driver")

// Snapshot replays saved HTML pages. Clicking a link whose text names a saved
// page switches to that page, the way selecting a store refreshes the
// scorecard in the live portal. Elements found before a switch go stale.
type Snapshot struct {
	mu         sync.Mutex
	pages      map[string]*goquery.Document
	current    string
	generation int
	url        string

	// InterceptClicks makes native clicks on links with these texts fail as
	// if covered by an overlay.
	InterceptClicks map[string]bool
	// Clicks records "native:<text>" or "script:<text>" for every click.
	Clicks []string
}

// PageName is the key a store's page is saved under.
func PageName(storeName string) string {
	return strings.ToLower(util.SanitizeFilename(storeName))
}

// NewSnapshot builds a snapshot driver from page name to HTML.
func NewSnapshot(pages map[string]string) (*Snapshot, error) {
	s := &Snapshot{pages: map[string]*goquery.Document{}, current: IndexPage}
	for name, html := range pages {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		s.pages[strings.ToLower(name)] = doc
	}
	if _, ok := s.pages[IndexPage]; !ok {
		return nil, fmt.Errorf("snapshot has no %s page", IndexPage)
	}
	return s, nil
}

// LoadSnapshotDir reads every *.html file in dir; index.html is the start page.
func LoadSnapshotDir(dir string) (*Snapshot, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, err
	}
	pages := make(map[string]string, len(files))
	for _, f := range files {
		blob, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		pages[strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))] = string(blob)
	}
	return NewSnapshot(pages)
}

func (s *Snapshot) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
	name := strings.ToLower(strings.TrimSuffix(path.Base(url), path.Ext(url)))
	if _, ok := s.pages[name]; ok {
		s.switchTo(name)
	}
	return nil
}

func (s *Snapshot) Find(ctx context.Context, selector string) (Element, error) {
	els, err := s.FindAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return els[0], nil
}

func (s *Snapshot) FindAll(_ context.Context, selector string) ([]Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wrap(s.pages[s.current].Find(selector)), nil
}

func (s *Snapshot) Evaluate(_ context.Context, expr string, out any) error {
	if strings.TrimSpace(expr) != OuterHTMLExpr {
		if out == nil {
			return nil
		}
		return errUnsupported
	}
	s.mu.Lock()
	html, err := goquery.OuterHtml(s.pages[s.current].Selection)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return decodeInto(html, out)
}

func (s *Snapshot) CurrentURL(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, nil
}

func (s *Snapshot) Close() error { return nil }

// Page returns the name of the page currently shown.
func (s *Snapshot) Page() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Snapshot) switchTo(name string) {
	s.current = name
	s.generation++
}

func (s *Snapshot) wrap(sel *goquery.Selection) []Element {
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, item *goquery.Selection) {
		out = append(out, &snapshotElement{s: s, sel: item, gen: s.generation})
	})
	return out
}

type snapshotElement struct {
	s   *Snapshot
	sel *goquery.Selection
	gen int
}

func (e *snapshotElement) live() error {
	if e.gen != e.s.generation {
		return ErrStale
	}
	return nil
}

func (e *snapshotElement) Text(context.Context) (string, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if err := e.live(); err != nil {
		return "", err
	}
	if e.sel.Is("input") {
		return e.sel.AttrOr("value", ""), nil
	}
	return e.sel.Text(), nil
}

func (e *snapshotElement) Click(context.Context) error {
	return e.click("native")
}

func (e *snapshotElement) click(method string) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if err := e.live(); err != nil {
		return err
	}
	text := strings.TrimSpace(e.sel.Text())
	if method == "native" && e.s.InterceptClicks[text] {
		return fmt.Errorf("%w by div#overlay", ErrClickIntercepted)
	}
	e.s.Clicks = append(e.s.Clicks, method+":"+text)
	if name := PageName(text); text != "" {
		if _, ok := e.s.pages[name]; ok {
			e.s.switchTo(name)
		}
	}
	return nil
}

func (e *snapshotElement) Call(_ context.Context, fn string, out any) error {
	switch fn {
	case ScriptClickJS:
		return e.click("script")
	case HitTestJS:
		return decodeInto("ok", out)
	case VisibleJS:
		e.s.mu.Lock()
		defer e.s.mu.Unlock()
		if err := e.live(); err != nil {
			return err
		}
		return decodeInto(!hiddenByStyle(e.sel), out)
	case ScrollIntoViewJS, ClearValueJS:
		e.s.mu.Lock()
		defer e.s.mu.Unlock()
		return e.live()
	}
	if out == nil {
		return nil
	}
	return errUnsupported
}

func (e *snapshotElement) Type(context.Context, string) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.live()
}

func (e *snapshotElement) FindAll(_ context.Context, selector string) ([]Element, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if err := e.live(); err != nil {
		return nil, err
	}
	return e.s.wrap(e.sel.Find(selector)), nil
}

// hiddenByStyle reports whether sel or an ancestor has an inline
// display:none.
func hiddenByStyle(sel *goquery.Selection) bool {
	for n := sel; n.Length() > 0; n = n.Parent() {
		style := strings.ToLower(strings.ReplaceAll(n.AttrOr("style", ""), " ", ""))
		if strings.Contains(style, "display:none") {
			return true
		}
	}
	return false
}

func decodeInto(v any, out any) error {
	if out == nil {
		return nil
	}
	blob, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(blob, out)
}
