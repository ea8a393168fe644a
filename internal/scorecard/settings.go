package scorecard

import (
	"time"

	"storekpi/internal/config"
	"storekpi/internal/retry"
)

// Settings holds the timing and retry knobs of the scraping loop.
type Settings struct {
	PollInterval     time.Duration
	StabilityTimeout time.Duration
	StableReads      int
	ElementWait      time.Duration

	Select    retry.Policy
	Locate    retry.Policy
	Enumerate retry.Policy
	Read      retry.Policy

	SkipKeywords []string
}

func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		PollInterval:     cfg.PollInterval,
		StabilityTimeout: cfg.StabilityTimeout,
		StableReads:      cfg.StableReads,
		ElementWait:      cfg.ElementWait,
		Select:           retry.Policy{Attempts: cfg.SelectAttempts, Delay: cfg.LocateDelay},
		Locate:           retry.Policy{Attempts: cfg.LocateAttempts, Delay: cfg.LocateDelay},
		Enumerate:        retry.Policy{Attempts: cfg.EnumerateAttempts, Delay: cfg.EnumerateDelay},
		Read:             retry.Policy{Attempts: cfg.ReadAttempts, Delay: cfg.ReadDelay},
		SkipKeywords:     cfg.SkipKeywords,
	}
}
