package scorecard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storekpi/internal"
	"storekpi/internal/browser"
	"storekpi/internal/retry"
	"storekpi/internal/util"
)

var (
	ErrUnknownRegional  = errors.New("unknown regional")
	ErrContainerMissing = errors.New("regional container not found")
)

type SkippedStore struct {
	Name    string
	Keyword string
}

// Listing is one scan of a regional's store links.
type Listing struct {
	Stores  []internal.StoreDescriptor
	Skipped []SkippedStore
}

func (l Listing) empty() bool {
	return len(l.Stores) == 0 && len(l.Skipped) == 0
}

type Enumerator struct {
	d         browser.Driver
	regionals map[string]string
	skip      *util.KeywordMatcher
	policy    retry.Policy
	log       *slog.Logger
}

func NewEnumerator(d browser.Driver, regionals map[string]string, settings Settings, log *slog.Logger) *Enumerator {
	return &Enumerator{
		d:         d,
		regionals: regionals,
		skip:      util.NewKeywordMatcher(settings.SkipKeywords),
		policy:    settings.Enumerate,
		log:       log,
	}
}

// ListStores returns the selectable stores of a regional. A container that
// cannot be found after the bounded retries yields an empty list.
func (e *Enumerator) ListStores(ctx context.Context, regional string) []internal.StoreDescriptor {
	listing, err := e.List(ctx, regional)
	if err != nil {
		e.log.Warn("no stores listed", "regional", regional, "err", err)
		return nil
	}
	return listing.Stores
}

// List scans the regional's container, retrying while the container is
// missing or shows no store links at all.
func (e *Enumerator) List(ctx context.Context, regional string) (Listing, error) {
	if _, ok := e.regionals[regional]; !ok {
		return Listing{}, fmt.Errorf("%w: %s", ErrUnknownRegional, regional)
	}
	listing, err := retry.Do(ctx, e.policy,
		func(ctx context.Context) (Listing, error) { return e.scan(ctx, regional) },
		func(l Listing) bool { return !l.empty() },
		func(err error, attempt int, wait time.Duration) {
			e.log.Debug("store list retry", "regional", regional, "attempt", attempt, "wait", wait, "err", err)
		},
	)
	if err != nil && !errors.Is(err, retry.ErrRejected) {
		return Listing{}, err
	}
	for _, s := range listing.Skipped {
		e.log.Info("skipped store", "regional", regional, "store", s.Name, "keyword", s.Keyword)
	}
	return listing, nil
}

type storeLink struct {
	name string
	el   browser.Element
}

func (e *Enumerator) links(ctx context.Context, regional string) ([]storeLink, error) {
	containerID, ok := e.regionals[regional]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRegional, regional)
	}
	container, err := e.d.Find(ctx, browser.ByID(containerID))
	if err != nil {
		if errors.Is(err, browser.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrContainerMissing, containerID)
		}
		return nil, err
	}
	els, err := container.FindAll(ctx, StoreLinkSelector)
	if err != nil {
		return nil, err
	}
	out := make([]storeLink, 0, len(els))
	for _, el := range els {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		name := util.NormalizeSpaces(text)
		if name == "" || strings.HasPrefix(name, ManagerPrefix) {
			continue
		}
		out = append(out, storeLink{name: name, el: el})
	}
	return out, nil
}

func (e *Enumerator) scan(ctx context.Context, regional string) (Listing, error) {
	links, err := e.links(ctx, regional)
	if err != nil {
		return Listing{}, err
	}
	var listing Listing
	for _, l := range links {
		if kw, skip := e.skip.Match(l.name); skip {
			listing.Skipped = append(listing.Skipped, SkippedStore{Name: l.name, Keyword: kw})
			continue
		}
		listing.Stores = append(listing.Stores, internal.StoreDescriptor{
			Name:          l.name,
			RegionalID:    regional,
			PositionIndex: len(listing.Stores),
		})
	}
	return listing, nil
}
