package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	ErrNotFound         = errors.New("element not found")
	ErrStale            = errors.New("stale element reference")
	ErrClickIntercepted = errors.New("click intercepted")
)

// Driver is the slice of a browser session the scraper needs.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// Find returns the first match or ErrNotFound. It does not wait.
	Find(ctx context.Context, selector string) (Element, error)
	FindAll(ctx context.Context, selector string) ([]Element, error)
	// Evaluate runs a JS expression in the page and decodes its value into out.
	Evaluate(ctx context.Context, expr string, out any) error
	CurrentURL(ctx context.Context) (string, error)
	Close() error
}

type Element interface {
	Text(ctx context.Context) (string, error)
	// Click is a native mouse click. It fails with ErrClickIntercepted when
	// another element sits on top of the target.
	Click(ctx context.Context) error
	// Call runs fn, a JS function declaration, with this bound to the element.
	Call(ctx context.Context, fn string, out any) error
	Type(ctx context.Context, text string) error
	FindAll(ctx context.Context, selector string) ([]Element, error)
}

const (
	ScrollIntoViewJS = `function(){ this.scrollIntoView({block: "center", inline: "nearest"}); }`
	ScriptClickJS    = `function(){ this.click(); }`
	ClearValueJS     = `function(){ this.value = ""; }`
	OuterHTMLExpr    = `document.documentElement.outerHTML`
	VisibleJS        = `function(){ return !!(this.offsetWidth || this.offsetHeight || this.getClientRects().length); }`

	// HitTestJS reports "ok" when the element's center point hits the element
	// itself, otherwise a short description of what is on top.
	HitTestJS = `function(){
  const r = this.getBoundingClientRect();
  if (r.width === 0 && r.height === 0) return "zero-size";
  const hit = document.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
  if (!hit) return "offscreen";
  if (hit === this || this.contains(hit) || hit.contains(this)) return "ok";
  return hit.tagName.toLowerCase() + (hit.id ? "#" + hit.id : "");
}`
)

// ByID addresses an element id as a CSS selector. Ids on the portal contain
// characters such as ':' that are not valid in a #id selector.
func ByID(id string) string {
	return `[id="` + strings.ReplaceAll(id, `"`, `\"`) + `"]`
}

// WaitFor polls Find until the selector matches or timeout passes.
func WaitFor(ctx context.Context, d Driver, selector string, timeout, interval time.Duration) (Element, error) {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	for {
		el, err := d.Find(ctx, selector)
		if err == nil {
			return el, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("wait for %s: %w", selector, ErrNotFound)
		}
		if err := Sleep(ctx, interval); err != nil {
			return nil, err
		}
	}
}

// TextOf finds selector and returns its trimmed text.
func TextOf(ctx context.Context, d Driver, selector string) (string, error) {
	el, err := d.Find(ctx, selector)
	if err != nil {
		return "", err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Visible reports whether el is rendered on the page. Errors count as hidden.
func Visible(ctx context.Context, el Element) bool {
	var ok bool
	return el.Call(ctx, VisibleJS, &ok) == nil && ok
}

// ClickWithFallback scrolls el into view and clicks it natively, falling back
// to a script click when the native click is intercepted. It returns the
// method that worked.
func ClickWithFallback(ctx context.Context, el Element, log *slog.Logger) (string, error) {
	if err := el.Call(ctx, ScrollIntoViewJS, nil); err != nil && errors.Is(err, ErrStale) {
		return "", err
	}
	err := el.Click(ctx)
	if err == nil {
		return "native", nil
	}
	if !errors.Is(err, ErrClickIntercepted) {
		return "", err
	}
	if log != nil {
		log.Debug("native click intercepted, using script click", "err", err)
	}
	if err := el.Call(ctx, ScriptClickJS, nil); err != nil {
		return "", fmt.Errorf("script click: %w", err)
	}
	return "script", nil
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrStale)
}

func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// classify maps backend error text onto the package taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range staleMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrStale, err)
		}
	}
	return err
}

var staleMarkers = []string{
	"no node",
	"could not find node",
	"node with given id",
	"detached",
	"cannot find context",
	"object not found",
	"cannot find object",
}

// checkHit runs the hit test on el and converts a miss into ErrClickIntercepted.
func checkHit(ctx context.Context, el Element) error {
	var res string
	if err := el.Call(ctx, HitTestJS, &res); err != nil {
		return err
	}
	if res != "ok" {
		return fmt.Errorf("%w by %s", ErrClickIntercepted, res)
	}
	return nil
}
