package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Rod drives a Chrome page through go-rod.
type Rod struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	log      *slog.Logger
}

func NewRod(ctx context.Context, opts Options) (*Rod, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(true).
		Set("window-size", fmt.Sprintf("%d,%d", opts.Width, opts.Height)).
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled")
	if opts.ExecPath != "" {
		l = l.Bin(opts.ExecPath)
	}

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect chrome: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("open page: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		log.Warn("set viewport failed", "err", err)
	}

	return &Rod{launcher: l, browser: b, page: page, log: log}, nil
}

func (r *Rod) Navigate(ctx context.Context, url string) error {
	p := r.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return rodErr(ctx, err)
	}
	return rodErr(ctx, p.WaitLoad())
}

func (r *Rod) Find(ctx context.Context, selector string) (Element, error) {
	els, err := r.FindAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return els[0], nil
}

func (r *Rod) FindAll(ctx context.Context, selector string) ([]Element, error) {
	els, err := r.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, rodErr(ctx, err)
	}
	return wrapRod(els), nil
}

func (r *Rod) Evaluate(ctx context.Context, expr string, out any) error {
	res, err := r.page.Context(ctx).Eval("() => (" + expr + ")")
	if err != nil {
		return rodErr(ctx, err)
	}
	return decodeRod(res, out)
}

func (r *Rod) CurrentURL(ctx context.Context) (string, error) {
	info, err := r.page.Context(ctx).Info()
	if err != nil {
		return "", rodErr(ctx, err)
	}
	return info.URL, nil
}

func (r *Rod) Close() error {
	err := r.browser.Close()
	r.launcher.Kill()
	r.launcher.Cleanup()
	return err
}

func wrapRod(els rod.Elements) []Element {
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	return text, rodErr(ctx, err)
}

func (e *rodElement) Click(ctx context.Context) error {
	if err := checkHit(ctx, e); err != nil {
		return err
	}
	return rodErr(ctx, e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1))
}

func (e *rodElement) Call(ctx context.Context, fn string, out any) error {
	res, err := e.el.Context(ctx).Eval(fn)
	if err != nil {
		return rodErr(ctx, err)
	}
	return decodeRod(res, out)
}

func (e *rodElement) Type(ctx context.Context, text string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return rodErr(ctx, err)
	}
	return rodErr(ctx, el.Input(text))
}

func (e *rodElement) FindAll(ctx context.Context, selector string) ([]Element, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, rodErr(ctx, err)
	}
	return wrapRod(els), nil
}

func decodeRod(res *proto.RuntimeRemoteObject, out any) error {
	if out == nil || res == nil {
		return nil
	}
	blob, err := json.Marshal(res.Value)
	if err != nil {
		return err
	}
	return json.Unmarshal(blob, out)
}

func rodErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var (
		covered   *rod.CoveredError
		noPointer *rod.NoPointerEventsError
		invisible *rod.InvisibleShapeError
	)
	if errors.As(err, &covered) || errors.As(err, &noPointer) || errors.As(err, &invisible) {
		return fmt.Errorf("%w: %v", ErrClickIntercepted, err)
	}
	return classify(err)
}
