package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"storekpi/internal"
	"storekpi/internal/browser"
	"storekpi/internal/config"
	"storekpi/internal/export"
	"storekpi/internal/pipeline"
)

var runFlags struct {
	mode      string
	year      int
	month     int
	regionals string
	formats   string
	headless  bool
	browser   string
	dumpHTML  string
	outDir    string
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.mode, "mode", "", "financial|scores|both|all")
	f.IntVar(&runFlags.year, "year", 0, "scorecard year")
	f.IntVar(&runFlags.month, "month", 0, "scorecard month, 1-12")
	f.StringVar(&runFlags.regionals, "regionals", "", "regional letters, e.g. A,C, or ALL")
	f.StringVar(&runFlags.formats, "formats", "", "csv,json,sqlite,text,xlsx or all")
	f.BoolVar(&runFlags.headless, "headless", true, "run the browser without a window")
	f.StringVar(&runFlags.browser, "browser", "", "chromedp|rod (default from PMO_BROWSER)")
	f.StringVar(&runFlags.dumpHTML, "dump-html", "", "save each store page's HTML to this directory for replay")
	f.StringVar(&runFlags.outDir, "out", "", "output directory (default from PMO_OUTPUT_DIR)")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--mode all] [--year 2025 --month 9] [--regionals A,C] [--formats csv,json]",
	Short: "Logs in to the portal and extracts every selected store. Missing options are prompted for.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer.Close()

		if runFlags.browser != "" {
			cfg.Browser = runFlags.browser
		}
		if runFlags.outDir != "" {
			cfg.OutputDir = runFlags.outDir
		}

		fl := jobFlags{
			mode:      runFlags.mode,
			year:      runFlags.year,
			month:     runFlags.month,
			regionals: runFlags.regionals,
			formats:   runFlags.formats,
		}
		if cmd.Flags().Changed("headless") {
			fl.headless = &runFlags.headless
		}
		p := newPrompter(os.Stdin, os.Stdout)
		j, err := promptJob(p, cfg, fl)
		if err != nil {
			return err
		}
		cfg.Headless = j.headless

		username, password, err := credentials(p, cfg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		d, err := browser.Open(ctx, browser.Options{
			Backend:  cfg.Browser,
			Headless: cfg.Headless,
			Width:    cfg.WindowWidth,
			Height:   cfg.WindowHeight,
			ExecPath: cfg.ChromePath,
			Logger:   log,
		})
		if err != nil {
			return fmt.Errorf("start browser: %w", err)
		}
		defer d.Close()

		s := pipeline.NewSession(d, cfg, log)
		s.DumpDir = runFlags.dumpHTML
		if err := s.Prepare(ctx, username, password, j.year, j.month); err != nil {
			if pipeline.IsFatal(err) {
				log.Error("run aborted before extraction", "err", err)
			}
			return err
		}
		return extract(cmd, s, cfg, j)
	},
}

type jobFlags struct {
	mode      string
	year      int
	month     int
	regionals string
	formats   string
	// headless is nil when --headless was not given.
	headless *bool
}

// job is a fully resolved extraction request.
type job struct {
	mode      internal.Mode
	year      int
	month     int
	regionals []string
	formats   []export.Format
	headless  bool
}

// promptJob fills in whatever the flags left out, asking on p.
func promptJob(p *prompter, cfg config.Config, fl jobFlags) (job, error) {
	now := time.Now()
	var (
		j   job
		err error
	)

	modeText := fl.mode
	if modeText == "" {
		modeText, err = p.askChoice("Extraction mode (financial/scores/both/all)", string(internal.ModeAll),
			func(s string) error { _, err := internal.ParseMode(s); return err })
		if err != nil {
			return job{}, err
		}
	}
	if j.mode, err = internal.ParseMode(modeText); err != nil {
		return job{}, err
	}

	j.year = fl.year
	if j.year == 0 {
		if j.year, err = p.askInt("Year", now.Year(), 2000, now.Year()+1); err != nil {
			return job{}, err
		}
	}
	j.month = fl.month
	if j.month == 0 {
		if j.month, err = p.askInt("Month", int(now.Month()), 1, 12); err != nil {
			return job{}, err
		}
	}
	if j.month < 1 || j.month > 12 {
		return job{}, fmt.Errorf("month must be 1-12, got %d", j.month)
	}

	regionals := fl.regionals
	if regionals == "" {
		label := fmt.Sprintf("Regionals (%s, comma separated, or ALL)", strings.Join(cfg.RegionalLetters(), ","))
		regionals, err = p.askChoice(label, "ALL",
			func(s string) error { _, err := cfg.ResolveRegionals(s); return err })
		if err != nil {
			return job{}, err
		}
	}
	if j.regionals, err = cfg.ResolveRegionals(regionals); err != nil {
		return job{}, err
	}

	formats := fl.formats
	if formats == "" {
		formats, err = p.askChoice("Output formats (csv,json,sqlite,text,xlsx or all)", "all",
			func(s string) error { _, err := export.ParseFormats(s); return err })
		if err != nil {
			return job{}, err
		}
	}
	if j.formats, err = export.ParseFormats(formats); err != nil {
		return job{}, err
	}

	if fl.headless != nil {
		j.headless = *fl.headless
	} else if j.headless, err = p.askYesNo("Run without a browser window", cfg.Headless); err != nil {
		return job{}, err
	}
	return j, nil
}

// credentials prefers PMO_USERNAME and PMO_PASSWORD and prompts for
// whichever is missing.
func credentials(p *prompter, cfg config.Config) (string, string, error) {
	username, password := cfg.Username, cfg.Password
	var err error
	if strings.TrimSpace(username) == "" {
		if username, err = p.ask("Username", ""); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		if password, err = p.password("Password"); err != nil {
			return "", "", err
		}
	}
	if err := cfg.Require("USERNAME", username); err != nil {
		return "", "", err
	}
	if err := cfg.Require("PASSWORD", password); err != nil {
		return "", "", err
	}
	return username, password, nil
}
