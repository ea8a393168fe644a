package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"storekpi/internal/config"
	"storekpi/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "storekpi",
	Short:         "storekpi scrapes store scorecards from the PMO portal into CSV, JSON, SQLite, text and XLSX.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var logLevel *string

func init() {
	logLevel = rootCmd.PersistentFlags().String("log-level", "", "debug|info|warn|error (default from PMO_LOG_LEVEL)")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger every command uses.
func setup() (config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	log, closer, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		NoColor: !term.IsTerminal(int(os.Stderr.Fd())),
	})
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, log, closer, nil
}
