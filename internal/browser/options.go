package browser

import (
	"context"
	"fmt"
	"log/slog"
)

type Options struct {
	Backend  string
	Headless bool
	Width    int
	Height   int
	ExecPath string
	Logger   *slog.Logger
}

// Open starts a live browser session with the configured backend.
func Open(ctx context.Context, opts Options) (Driver, error) {
	if opts.Width <= 0 {
		opts.Width = 1920
	}
	if opts.Height <= 0 {
		opts.Height = 1080
	}
	switch opts.Backend {
	case "", "chromedp":
		return NewChromedp(ctx, opts)
	case "rod":
		return NewRod(ctx, opts)
	default:
		return nil, fmt.Errorf("unsupported browser backend: %s", opts.Backend)
	}
}
