package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"storekpi/internal"
	"storekpi/internal/storage"
)

var storesFlags struct {
	db    string
	runID string
}

func init() {
	f := storesCmd.Flags()
	f.StringVar(&storesFlags.db, "db", "", "SQLite database written by run (default from PMO_DB_PATH)")
	f.StringVar(&storesFlags.runID, "run", "", "run id (default: the last saved run)")
	rootCmd.AddCommand(storesCmd)
}

var storesCmd = &cobra.Command{
	Use:   "stores [--db out/pmo.db] [--run <id>]",
	Short: "Lists the stores, scores and KPIs saved for a run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer.Close()

		path := storesFlags.db
		if path == "" {
			path = cfg.DBPath
		}
		if path == "" {
			return errors.New("no database: pass --db or set PMO_DB_PATH")
		}
		db, err := storage.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer db.Close()

		return printStores(cmd.OutOrStdout(), db, storesFlags.runID)
	},
}

// printStores writes one table row per stored store of runID, or of the last
// saved run when runID is empty.
func printStores(w io.Writer, db *storage.DB, runID string) error {
	if runID == "" {
		last, err := db.GetMetadata(storage.LastRunKey)
		if err != nil {
			return err
		}
		if last == nil {
			return errors.New("no saved runs")
		}
		runID = *last
	}
	stores, err := db.ListStores(runID)
	if err != nil {
		return err
	}
	if len(stores) == 0 {
		return fmt.Errorf("no stores for run %s", runID)
	}

	t := table.NewWriter()
	t.SetTitle("Run " + runID)
	t.AppendHeader(table.Row{"#", "Regional", "Store", "Period", "Total Score", "KPIs", "Error"})
	for i, s := range stores {
		total := ""
		if v, ok := s.Scores["Total"]; ok {
			total = strconv.FormatFloat(v, 'f', 2, 64)
		}
		msg := ""
		if s.ErrorMessage != internal.NoError {
			msg = s.ErrorMessage
		}
		t.AppendRow(table.Row{i + 1, s.Regional, s.StoreName, fmt.Sprintf("%d-%02d", s.Year, s.Month), total, len(s.KPIs), msg})
	}
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}

	kpis := map[string]bool{}
	for _, s := range stores {
		for _, k := range s.KPIs {
			kpis[k.Name] = true
		}
	}
	_, err = fmt.Fprintf(w, "%d stores, %d distinct KPIs\n", len(stores), len(kpis))
	return err
}
