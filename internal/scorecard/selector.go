package scorecard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"storekpi/internal"
	"storekpi/internal/browser"
	"storekpi/internal/retry"
)

var ErrStoreNotFound = errors.New("store link not found")

// Selector clicks a store in the organization tree and waits for the
// scorecard to refresh.
type Selector struct {
	enum    *Enumerator
	poller  *Poller
	locate  retry.Policy
	attempt retry.Policy
	log     *slog.Logger
}

func NewSelector(enum *Enumerator, poller *Poller, settings Settings, log *slog.Logger) *Selector {
	return &Selector{
		enum:    enum,
		poller:  poller,
		locate:  settings.Locate,
		attempt: settings.Select,
		log:     log,
	}
}

// Select clicks the store and polls witness until it settles. The whole
// locate, click, poll sequence is retried with a freshly located link each
// time. It returns the settled witness value.
func (s *Selector) Select(ctx context.Context, store internal.StoreDescriptor, witness string) (string, error) {
	log := s.log.With("regional", store.RegionalID, "store", store.Name)
	return retry.Do(ctx, s.attempt,
		func(ctx context.Context) (string, error) {
			link, err := s.find(ctx, store)
			if err != nil {
				return "", err
			}
			method, err := browser.ClickWithFallback(ctx, link, log)
			if err != nil {
				return "", fmt.Errorf("click: %w", err)
			}
			log.Debug("store clicked", "method", method)
			return s.poller.WaitUntilStable(ctx, witness)
		},
		nil,
		func(err error, attempt int, wait time.Duration) {
			log.Warn("store selection retry", "attempt", attempt, "wait", wait, "err", err)
		},
	)
}

// find re-enumerates the regional and returns the link whose name matches
// exactly. A store still missing after the locate attempts is not retried
// further.
func (s *Selector) find(ctx context.Context, store internal.StoreDescriptor) (browser.Element, error) {
	el, err := retry.Do(ctx, s.locate,
		func(ctx context.Context) (browser.Element, error) {
			links, err := s.enum.links(ctx, store.RegionalID)
			if err != nil {
				return nil, err
			}
			for _, l := range links {
				if l.name == store.Name {
					return l.el, nil
				}
			}
			return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, store.Name)
		},
		nil, nil,
	)
	if err == nil {
		return el, nil
	}
	if errors.Is(err, ErrStoreNotFound) || errors.Is(err, ErrUnknownRegional) {
		return nil, retry.Permanent(err)
	}
	return nil, err
}
