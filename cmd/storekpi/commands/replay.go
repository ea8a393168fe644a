package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"storekpi/internal/browser"
	"storekpi/internal/pipeline"
)

var replayFlags struct {
	dir       string
	mode      string
	year      int
	month     int
	regionals string
	formats   string
	outDir    string
}

func init() {
	f := replayCmd.Flags()
	f.StringVar(&replayFlags.dir, "dir", "", "directory of pages saved with run --dump-html")
	f.StringVar(&replayFlags.mode, "mode", "all", "financial|scores|both|all")
	f.IntVar(&replayFlags.year, "year", 0, "year recorded in the output")
	f.IntVar(&replayFlags.month, "month", 0, "month the pages were saved for, 1-12")
	f.StringVar(&replayFlags.regionals, "regionals", "ALL", "regional letters, e.g. A,C, or ALL")
	f.StringVar(&replayFlags.formats, "formats", "csv,json", "csv,json,sqlite,text,xlsx or all")
	f.StringVar(&replayFlags.outDir, "out", "", "output directory (default from PMO_OUTPUT_DIR)")
	_ = replayCmd.MarkFlagRequired("dir")
	_ = replayCmd.MarkFlagRequired("year")
	_ = replayCmd.MarkFlagRequired("month")
	rootCmd.AddCommand(replayCmd)
}

var replayCmd = &cobra.Command{
	Use:   "replay --dir <pages> --year 2025 --month 9",
	Short: "Runs the extraction loop against saved HTML pages instead of the live portal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer.Close()
		if replayFlags.outDir != "" {
			cfg.OutputDir = replayFlags.outDir
		}

		j, err := promptJob(newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()), cfg, jobFlags{
			mode:      replayFlags.mode,
			year:      replayFlags.year,
			month:     replayFlags.month,
			regionals: replayFlags.regionals,
			formats:   replayFlags.formats,
			// Replay has no browser window to ask about.
			headless: &cfg.Headless,
		})
		if err != nil {
			return err
		}

		snap, err := browser.LoadSnapshotDir(replayFlags.dir)
		if err != nil {
			return fmt.Errorf("load pages: %w", err)
		}
		// Saved pages never change, so there is nothing to wait for between stores.
		cfg.StoreInterval = 0

		s := pipeline.NewSession(snap, cfg, log)
		log.Info("replaying saved pages", "dir", replayFlags.dir)
		return extract(cmd, s, cfg, j)
	},
}
