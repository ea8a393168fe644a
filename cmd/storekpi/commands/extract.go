package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"storekpi/internal/config"
	"storekpi/internal/export"
	"storekpi/internal/pipeline"
)

// extract runs every pass of the job and saves each pass's records. Records
// gathered before a Ctrl-C are still saved.
func extract(cmd *cobra.Command, s *pipeline.Session, cfg config.Config, j job) error {
	ctx := cmd.Context()
	log := s.Log()
	w := export.Writer{Dir: cfg.OutputDir, DBPath: cfg.DBPath, Log: log}

	var runErr error
	for _, mode := range j.mode.Passes() {
		started := time.Now()
		records, err := s.RunPass(ctx, mode, j.regionals, j.year, j.month)
		meta := export.Meta{
			RunID:     s.RunID(),
			Mode:      mode,
			Regionals: j.regionals,
			Year:      j.year,
			Month:     j.month,
			StartedAt: started,
		}
		paths, saveErr := w.Save(context.WithoutCancel(ctx), j.formats, records, meta)
		for _, p := range paths {
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", p)
		}
		if saveErr != nil {
			runErr = errors.Join(runErr, saveErr)
		}
		if err != nil {
			return errors.Join(runErr, err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s done stores=%d\n", s.RunID(), len(s.Results()))
	return runErr
}
