package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Chromedp drives a Chrome tab through the DevTools protocol.
type Chromedp struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	log         *slog.Logger
}

func NewChromedp(ctx context.Context, opts Options) (*Chromedp, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(opts.Width, opts.Height),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(func(format string, args ...any) {
		log.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
	}))

	c := &Chromedp{ctx: tabCtx, cancel: cancel, allocCancel: allocCancel, log: log}
	if err := c.run(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return c, nil
}

// run executes actions on the tab while honouring ctx. Cancelling ctx aborts
// the actions without closing the tab.
func (c *Chromedp) run(ctx context.Context, actions ...chromedp.Action) error {
	return chromedp.Run(c.ctx, chromedp.ActionFunc(func(execCtx context.Context) error {
		opCtx, cancel := context.WithCancel(execCtx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		for _, a := range actions {
			if err := a.Do(opCtx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return classify(err)
			}
		}
		return nil
	}))
}

func (c *Chromedp) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, chromedp.Navigate(url))
}

func (c *Chromedp) Find(ctx context.Context, selector string) (Element, error) {
	els, err := c.FindAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return els[0], nil
}

func (c *Chromedp) FindAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := c.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	return c.wrap(nodes), nil
}

func (c *Chromedp) Evaluate(ctx context.Context, expr string, out any) error {
	if out == nil {
		var discard []byte
		return c.run(ctx, chromedp.Evaluate(expr, &discard))
	}
	return c.run(ctx, chromedp.Evaluate(expr, out))
}

func (c *Chromedp) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := c.run(ctx, chromedp.Location(&url))
	return url, err
}

func (c *Chromedp) Close() error {
	err := chromedp.Cancel(c.ctx)
	c.cancel()
	c.allocCancel()
	return err
}

func (c *Chromedp) wrap(nodes []*cdp.Node) []Element {
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &cdpElement{c: c, node: n})
	}
	return out
}

type cdpElement struct {
	c    *Chromedp
	node *cdp.Node
}

func (e *cdpElement) Text(ctx context.Context) (string, error) {
	var text string
	err := e.Call(ctx, `function(){ return this.innerText || this.textContent || ""; }`, &text)
	return text, err
}

func (e *cdpElement) Click(ctx context.Context) error {
	if err := checkHit(ctx, e); err != nil {
		return err
	}
	return e.c.run(ctx, chromedp.MouseClickNode(e.node))
}

func (e *cdpElement) Call(ctx context.Context, fn string, out any) error {
	return e.c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(e.node.BackendNodeID).Do(ctx)
		if err != nil {
			return err
		}
		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("script exception: %s", exc.Text)
		}
		if out == nil || res == nil || len(res.Value) == 0 {
			return nil
		}
		return json.Unmarshal([]byte(res.Value), out)
	}))
}

func (e *cdpElement) Type(ctx context.Context, text string) error {
	if err := e.Call(ctx, ClearValueJS, nil); err != nil {
		return err
	}
	return e.c.run(ctx, chromedp.SendKeys([]cdp.NodeID{e.node.NodeID}, text, chromedp.ByNodeID))
}

func (e *cdpElement) FindAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	err := e.c.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0), chromedp.FromNode(e.node)))
	if err != nil {
		return nil, err
	}
	return e.c.wrap(nodes), nil
}
