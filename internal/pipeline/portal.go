package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"storekpi/internal/browser"
	"storekpi/internal/config"
	"storekpi/internal/retry"
)

var (
	ErrLogin     = errors.New("login failed")
	ErrDashboard = errors.New("dashboard unreachable")
	ErrPeriod    = errors.New("period not selectable")
	ErrModal     = errors.New("organization tree did not open")
)

const (
	loginPath     = "/Systems/Login.aspx"
	homeMarker    = "Home/Home.aspx"
	dashboardPath = "/Performance%20Review/Dashboard.aspx"

	userField     = "txt_UserID"
	passwordField = "txt_Password"
	loginButton   = "robLogin"
	roleButton    = "btnSaveInputRole"

	dashboardSubmenu  = "ctl00_MenuControlHorizontal1_NavigationMenu:submenu:16"
	dashboardLink     = "a[href='Dashboard.aspx']"
	periodDropdown    = "ctl00_ContentPlaceHolder1_ddlPeriod"
	monthDropdown     = "ctl00_ContentPlaceHolder1_ddlMonth"
	viewOtherButton   = "ctl00_ContentPlaceHolder1_btnViewOtherSCO"
	modalCloseButtons = "input[value='Close']"
)

const showSubmenuJS = `function(){ this.style.display = "block"; this.style.visibility = "visible"; }`

// Portal drives the pages around the scorecard: login, the dashboard menu,
// the period dropdowns and the organization tree modal.
type Portal struct {
	d           browser.Driver
	baseURL     string
	wait        time.Duration
	interval    time.Duration
	pageTimeout time.Duration
	modal       retry.Policy
	log         *slog.Logger
}

func NewPortal(d browser.Driver, cfg config.Config, log *slog.Logger) *Portal {
	return &Portal{
		d:           d,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		wait:        cfg.ElementWait,
		interval:    cfg.PollInterval,
		pageTimeout: cfg.PageTimeout,
		modal:       retry.Policy{Attempts: cfg.ModalAttempts, Delay: cfg.ModalDelay},
		log:         log,
	}
}

func (p *Portal) Login(ctx context.Context, username, password string) error {
	p.log.Info("logging in", "url", p.baseURL+loginPath)
	if err := p.navigate(ctx, p.baseURL+loginPath); err != nil {
		return fmt.Errorf("%w: %v", ErrLogin, err)
	}
	user, err := browser.WaitFor(ctx, p.d, browser.ByID(userField), p.wait, p.interval)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLogin, err)
	}
	if err := user.Type(ctx, username); err != nil {
		return fmt.Errorf("%w: username: %v", ErrLogin, err)
	}
	pass, err := p.d.Find(ctx, browser.ByID(passwordField))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLogin, err)
	}
	if err := pass.Type(ctx, password); err != nil {
		return fmt.Errorf("%w: password: %v", ErrLogin, err)
	}
	submit, err := p.d.Find(ctx, browser.ByID(loginButton))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLogin, err)
	}
	if _, err := browser.ClickWithFallback(ctx, submit, p.log); err != nil {
		return fmt.Errorf("%w: submit: %v", ErrLogin, err)
	}

	// Some accounts get a role confirmation popup before the home page.
	if role, err := browser.WaitFor(ctx, p.d, browser.ByID(roleButton), min(p.wait, 5*time.Second), p.interval); err == nil {
		if _, err := browser.ClickWithFallback(ctx, role, p.log); err != nil {
			p.log.Warn("role popup click failed", "err", err)
		} else {
			p.log.Info("role popup confirmed")
		}
	} else if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := p.waitURL(ctx, homeMarker); err != nil {
		return fmt.Errorf("%w: %v", ErrLogin, err)
	}
	p.log.Info("login successful")
	return nil
}

// OpenDashboard follows the Performance Review menu to the dashboard and
// falls back to the dashboard URL when the menu cannot be used.
func (p *Portal) OpenDashboard(ctx context.Context) error {
	err := p.dashboardViaMenu(ctx)
	if err == nil {
		p.log.Info("dashboard opened")
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	p.log.Warn("dashboard menu failed, navigating directly", "err", err)

	if err := p.navigate(ctx, p.baseURL+dashboardPath); err != nil {
		return fmt.Errorf("%w: %v", ErrDashboard, err)
	}
	if _, err := browser.WaitFor(ctx, p.d, browser.ByID(periodDropdown), p.wait, p.interval); err != nil {
		return fmt.Errorf("%w: %v", ErrDashboard, err)
	}
	p.log.Info("dashboard opened", "direct", true)
	return nil
}

func (p *Portal) dashboardViaMenu(ctx context.Context) error {
	submenu, err := browser.WaitFor(ctx, p.d, browser.ByID(dashboardSubmenu), p.wait, p.interval)
	if err != nil {
		return err
	}
	if err := submenu.Call(ctx, showSubmenuJS, nil); err != nil {
		return err
	}
	links, err := submenu.FindAll(ctx, dashboardLink)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return fmt.Errorf("%s: %w", dashboardLink, browser.ErrNotFound)
	}
	if _, err := browser.ClickWithFallback(ctx, links[0], p.log); err != nil {
		return err
	}
	_, err = browser.WaitFor(ctx, p.d, browser.ByID(periodDropdown), p.wait, p.interval)
	return err
}

// SelectPeriod picks the year and the English month name in the dashboard
// dropdowns. Each change posts the page back.
func (p *Portal) SelectPeriod(ctx context.Context, year, month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d", ErrPeriod, month)
	}
	if err := p.selectOption(ctx, periodDropdown, strconv.Itoa(year)); err != nil {
		return err
	}
	if err := p.selectOption(ctx, monthDropdown, time.Month(month).String()); err != nil {
		return err
	}
	p.log.Info("period selected", "year", year, "month", time.Month(month).String())
	return nil
}

func (p *Portal) selectOption(ctx context.Context, id, text string) error {
	if _, err := browser.WaitFor(ctx, p.d, browser.ByID(id), p.wait, p.interval); err != nil {
		return fmt.Errorf("%w: %v", ErrPeriod, err)
	}
	var ok bool
	if err := p.d.Evaluate(ctx, selectByTextExpr(id, text), &ok); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPeriod, id, err)
	}
	if !ok {
		return fmt.Errorf("%w: no option %q in %s", ErrPeriod, text, id)
	}
	// The postback replaces the dropdown; wait for it to come back.
	if err := browser.Sleep(ctx, p.interval); err != nil {
		return err
	}
	if _, err := browser.WaitFor(ctx, p.d, browser.ByID(id), p.wait, p.interval); err != nil {
		return fmt.Errorf("%w: %v", ErrPeriod, err)
	}
	return nil
}

func selectByTextExpr(id, text string) string {
	return fmt.Sprintf(`(() => {
  const s = document.getElementById(%s);
  if (!s) return false;
  for (const o of s.options) {
    if (o.text.trim() === %s) {
      s.value = o.value;
      s.dispatchEvent(new Event("change", {bubbles: true}));
      return true;
    }
  }
  return false;
})()`, strconv.Quote(id), strconv.Quote(text))
}

// EnsureTree makes the regional's store tree visible, clicking View Other
// Scorecard when the container is missing or hidden.
func (p *Portal) EnsureTree(ctx context.Context, container string) error {
	if el, err := p.d.Find(ctx, browser.ByID(container)); err == nil && browser.Visible(ctx, el) {
		return nil
	}
	return retry.Run(ctx, p.modal,
		func(ctx context.Context) error {
			btn, err := browser.WaitFor(ctx, p.d, browser.ByID(viewOtherButton), p.wait, p.interval)
			if err != nil {
				return err
			}
			if _, err := browser.ClickWithFallback(ctx, btn, p.log); err != nil {
				return err
			}
			if _, err := browser.WaitFor(ctx, p.d, browser.ByID(container), p.wait, p.interval); err != nil {
				return fmt.Errorf("%w: %v", ErrModal, err)
			}
			return nil
		},
		func(err error, attempt int, wait time.Duration) {
			p.log.Warn("open organization tree retry", "attempt", attempt, "wait", wait, "err", err)
		},
	)
}

// CloseModal clicks the first visible Close button, if there is one.
func (p *Portal) CloseModal(ctx context.Context) {
	buttons, err := p.d.FindAll(ctx, modalCloseButtons)
	if err != nil {
		p.log.Debug("no open modal", "err", err)
		return
	}
	for _, b := range buttons {
		if !browser.Visible(ctx, b) {
			continue
		}
		if _, err := browser.ClickWithFallback(ctx, b, p.log); err != nil {
			p.log.Warn("close modal failed", "err", err)
		}
		return
	}
	p.log.Debug("no open modal")
}

// navigate bounds a page load by the page timeout.
func (p *Portal) navigate(ctx context.Context, url string) error {
	if p.pageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.pageTimeout)
		defer cancel()
	}
	return p.d.Navigate(ctx, url)
}

func (p *Portal) waitURL(ctx context.Context, marker string) error {
	deadline := time.Now().Add(p.wait)
	for {
		url, err := p.d.CurrentURL(ctx)
		if err == nil && strings.Contains(url, marker) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("url %q does not contain %s", url, marker)
		}
		if err := browser.Sleep(ctx, p.interval); err != nil {
			return err
		}
	}
}
