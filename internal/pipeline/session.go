package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"storekpi/internal"
	"storekpi/internal/browser"
	"storekpi/internal/config"
	"storekpi/internal/scorecard"
)

const (
	MethodSinglePass = "single_pass"
	MethodError      = "error"
)

// Session is one scraping run against one browser. It is not safe for
// concurrent use; the portal only tolerates one store at a time.
type Session struct {
	cfg      config.Config
	log      *slog.Logger
	d        browser.Driver
	runID    string
	settings scorecard.Settings
	limiter  *rate.Limiter

	portal   *Portal
	enum     *scorecard.Enumerator
	selector *scorecard.Selector

	results []internal.Record

	// DumpDir, when set, receives the HTML of the index page and of every
	// selected store, in the layout LoadSnapshotDir reads back.
	DumpDir string

	now func() time.Time
}

func NewSession(d browser.Driver, cfg config.Config, log *slog.Logger) *Session {
	runID := uuid.NewString()
	log = log.With("run_id", runID)
	settings := scorecard.SettingsFromConfig(cfg)

	limit := rate.Inf
	if cfg.StoreInterval > 0 {
		limit = rate.Every(cfg.StoreInterval)
	}

	enum := scorecard.NewEnumerator(d, cfg.Regionals(), settings, log)
	return &Session{
		cfg:      cfg,
		log:      log,
		d:        d,
		runID:    runID,
		settings: settings,
		limiter:  rate.NewLimiter(limit, 1),
		portal:   NewPortal(d, cfg, log),
		enum:     enum,
		selector: scorecard.NewSelector(enum, scorecard.NewPoller(d, settings, log), settings, log),
		now:      time.Now,
	}
}

func (s *Session) RunID() string { return s.runID }

func (s *Session) Log() *slog.Logger { return s.log }

// Results returns every record produced so far, across passes.
func (s *Session) Results() []internal.Record { return s.results }

// Prepare logs in and opens the dashboard for the period. Any failure here
// is fatal for the run.
func (s *Session) Prepare(ctx context.Context, username, password string, year, month int) error {
	if err := s.portal.Login(ctx, username, password); err != nil {
		return err
	}
	if err := s.portal.OpenDashboard(ctx); err != nil {
		return err
	}
	return s.portal.SelectPeriod(ctx, year, month)
}

// RunPass extracts every store of the given regionals in one mode. A store
// that fails becomes an error record and the pass goes on; only context
// cancellation ends it early, returning the records gathered so far.
func (s *Session) RunPass(ctx context.Context, mode internal.Mode, regionals []string, year, month int) ([]internal.Record, error) {
	start := time.Now()
	log := s.log.With("mode", mode)
	log.Info("pass started", "regionals", regionals, "year", year, "month", month)

	var records []internal.Record
	for _, regional := range regionals {
		recs, err := s.runRegional(ctx, log.With("regional", regional), mode, regional, year, month)
		records = append(records, recs...)
		s.results = append(s.results, recs...)
		if err != nil {
			return records, err
		}
	}

	log.Info("pass finished", "stores", len(records), "errors", countFailed(records), "elapsed", time.Since(start).Round(time.Millisecond))
	return records, nil
}

func (s *Session) runRegional(ctx context.Context, log *slog.Logger, mode internal.Mode, regional string, year, month int) ([]internal.Record, error) {
	container, ok := s.cfg.Regionals()[regional]
	if !ok {
		log.Error("unknown regional")
		return nil, nil
	}
	if err := s.portal.EnsureTree(ctx, container); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error("organization tree unavailable, skipping regional", "err", err)
		return nil, nil
	}
	s.dumpIndex(ctx, log)

	stores := s.enum.ListStores(ctx, regional)
	if len(stores) == 0 {
		log.Warn("no active stores")
		return nil, ctx.Err()
	}
	log.Info("stores listed", "count", len(stores))

	var records []internal.Record
	for i, store := range stores {
		if err := s.limiter.Wait(ctx); err != nil {
			return records, err
		}
		if i > 0 {
			s.portal.CloseModal(ctx)
			if err := s.portal.EnsureTree(ctx, container); err != nil {
				if ctx.Err() != nil {
					return records, ctx.Err()
				}
				log.Error("could not reopen organization tree", "store", store.Name, "err", err)
				records = append(records, s.errorRecord(mode, store, year, month, fmt.Sprintf("organization tree unavailable: %v", err)))
				continue
			}
		}

		log.Info("processing store", "index", i+1, "of", len(stores), "store", store.Name)
		rec, err := s.processStore(ctx, mode, store, year, month)
		records = append(records, rec)
		if err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			log.Error("store failed", "store", store.Name, "err", err)
		}
	}
	return records, nil
}

// processStore selects one store and extracts it. On failure the returned
// record is the zero filled error record for the mode.
func (s *Session) processStore(ctx context.Context, mode internal.Mode, store internal.StoreDescriptor, year, month int) (internal.Record, error) {
	log := s.log.With("regional", store.RegionalID, "store", store.Name)
	witness, secondary := scorecard.Witness(mode, month)
	value, err := s.selector.Select(ctx, store, witness)
	if err != nil {
		return s.errorRecord(mode, store, year, month, fmt.Sprintf("select store: %v", err)), err
	}
	if v, err := browser.TextOf(ctx, s.d, secondary); err == nil {
		log.Debug("scorecard refreshed", "witness", value, "secondary", v)
	}
	s.dumpStore(ctx, log, store.Name)

	x := scorecard.NewExtractor(s.d, month, s.settings, log)
	head := s.header(mode, store, year, month)
	switch mode {
	case internal.ModeFinancial:
		rec := x.Financial(ctx, scorecard.DetectLayout(ctx, s.d, log))
		rec.RecordHeader = head
		return rec, ctx.Err()
	case internal.ModeScores:
		return internal.ScoreRecord{RecordHeader: head, Scores: x.Scores(ctx)}, ctx.Err()
	default:
		rec := internal.CombinedRecord{RecordHeader: head, Scores: x.Scores(ctx), KPIs: x.KPIs(ctx)}
		log.Info("store extracted", "kpis", len(rec.KPIs), "total_score", rec.Total)
		return rec, ctx.Err()
	}
}

func (s *Session) header(mode internal.Mode, store internal.StoreDescriptor, year, month int) internal.RecordHeader {
	return internal.RecordHeader{
		Regional:            store.RegionalID,
		StoreName:           store.Name,
		Year:                year,
		Month:               month,
		ExtractionType:      string(mode),
		ExtractionMethod:    MethodSinglePass,
		ExtractionTimestamp: s.timestamp(),
	}
}

// errorRecord is the zero filled record of a store that could not be
// extracted.
func (s *Session) errorRecord(mode internal.Mode, store internal.StoreDescriptor, year, month int, msg string) internal.ErrorRecord {
	head := s.header(mode, store, year, month)
	head.ExtractionMethod = MethodError
	head.ErrorMessage = msg
	return internal.ErrorRecord{RecordHeader: head, Mode: mode}
}

func (s *Session) timestamp() string {
	return s.now().Format(time.RFC3339)
}

func (s *Session) dumpIndex(ctx context.Context, log *slog.Logger) {
	if s.DumpDir == "" {
		return
	}
	path := filepath.Join(s.DumpDir, browser.IndexPage+".html")
	if _, err := os.Stat(path); err == nil {
		return
	}
	s.dump(ctx, log, path)
}

func (s *Session) dumpStore(ctx context.Context, log *slog.Logger, store string) {
	if s.DumpDir == "" {
		return
	}
	s.dump(ctx, log, filepath.Join(s.DumpDir, browser.PageName(store)+".html"))
}

func (s *Session) dump(ctx context.Context, log *slog.Logger, path string) {
	var html string
	if err := s.d.Evaluate(ctx, browser.OuterHTMLExpr, &html); err != nil {
		log.Warn("page dump failed", "err", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Warn("page dump failed", "err", err)
		return
	}
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		log.Warn("page dump failed", "err", err)
	}
}

func countFailed(records []internal.Record) int {
	n := 0
	for _, r := range records {
		if _, ok := r.(internal.ErrorRecord); ok {
			n++
		}
	}
	return n
}

// IsFatal reports whether err should abort the whole run rather than a
// single store.
func IsFatal(err error) bool {
	return errors.Is(err, ErrLogin) || errors.Is(err, ErrDashboard) || errors.Is(err, ErrPeriod) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
