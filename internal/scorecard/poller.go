package scorecard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"storekpi/internal/browser"
	"storekpi/internal/util"
)

var ErrUnstable = errors.New("witness cell did not stabilize")

// Poller waits for an asynchronously refreshed cell to settle.
type Poller struct {
	d           browser.Driver
	interval    time.Duration
	timeout     time.Duration
	appearWait  time.Duration
	stableReads int
	log         *slog.Logger
}

func NewPoller(d browser.Driver, settings Settings, log *slog.Logger) *Poller {
	reads := settings.StableReads
	if reads < 1 {
		reads = 1
	}
	return &Poller{
		d:           d,
		interval:    settings.PollInterval,
		timeout:     settings.StabilityTimeout,
		appearWait:  settings.ElementWait,
		stableReads: reads,
		log:         log,
	}
}

// WaitUntilStable returns the settled text once stableReads consecutive reads
// of selector are identical, non-empty and not the placeholder. The cell is
// looked up again on every read so a re-rendered page never leaves it stale.
// The stability timeout also covers the wait for the cell to appear.
func (p *Poller) WaitUntilStable(ctx context.Context, selector string) (string, error) {
	deadline := time.Now().Add(p.timeout)
	if _, err := browser.WaitFor(ctx, p.d, selector, min(p.appearWait, p.timeout), p.interval); err != nil {
		return "", fmt.Errorf("witness %s: %w", selector, err)
	}

	prev := ""
	run := 0
	for reads := 1; ; reads++ {
		text, err := browser.TextOf(ctx, p.d, selector)
		switch {
		case err != nil && browser.IsTransient(err):
			p.log.Debug("witness read failed, resetting", "err", err)
			prev, run = "", 0
		case err != nil:
			return "", err
		case util.IsBlank(text):
			prev, run = "", 0
		case text == prev:
			run++
		default:
			prev, run = text, 1
		}

		if run >= p.stableReads {
			p.log.Debug("witness stable", "value", prev, "reads", reads)
			return prev, nil
		}
		if !time.Now().Before(deadline) {
			return "", fmt.Errorf("%w after %s (last %q)", ErrUnstable, p.timeout, prev)
		}
		if err := browser.Sleep(ctx, p.interval); err != nil {
			return "", err
		}
	}
}
