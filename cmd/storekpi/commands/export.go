package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"storekpi/internal/export"
)

var exportFlags struct {
	in      string
	formats string
	outDir  string
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportFlags.in, "in", "", "JSON result written by run")
	f.StringVar(&exportFlags.formats, "formats", "csv,xlsx", "csv,json,sqlite,text,xlsx or all")
	f.StringVar(&exportFlags.outDir, "out", "", "output directory (default from PMO_OUTPUT_DIR)")
	_ = exportCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export --in <result.json> [--formats csv,xlsx]",
	Short: "Re-exports a saved JSON result into other formats.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer.Close()

		formats, err := export.ParseFormats(exportFlags.formats)
		if err != nil {
			return err
		}
		meta, records, err := export.ReadJSON(exportFlags.in)
		if err != nil {
			return fmt.Errorf("read %s: %w", exportFlags.in, err)
		}
		if len(records) == 0 {
			return fmt.Errorf("no stores in %s", exportFlags.in)
		}
		if meta.StartedAt.IsZero() {
			meta.StartedAt = time.Now()
		}

		dir := cfg.OutputDir
		if exportFlags.outDir != "" {
			dir = exportFlags.outDir
		}
		paths, err := export.Writer{Dir: dir, DBPath: cfg.DBPath, Log: log}.Save(cmd.Context(), formats, records, meta)
		for _, p := range paths {
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", p)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d stores\n", len(records))
		return nil
	},
}
