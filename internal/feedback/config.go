package feedback

import (
	"fmt"
	"time"
)

// Config holds configuration for the feedback processor
type Config struct {
	// Label selects the tracker issues that are feedback reports
	// Default: "content-feedback"
	Label string

	// Limit is the maximum number of issues fetched from the tracker
	// Default: 50
	Limit int

	// MaxReportsPerRun bounds the number of reports processed in one run
	// after filtering and prioritization (0 = no bound)
	// Default: 20
	MaxReportsPerRun int

	// Cooldown is the window after a completed report during which the same
	// report is skipped
	// Default: 24 hours
	Cooldown time.Duration

	// CertificationChannels are processed sooner than their item count implies
	CertificationChannels []string
}

// DefaultConfig returns the default processor configuration
func DefaultConfig() Config {
	return Config{
		Label:            "content-feedback",
		Limit:            50,
		MaxReportsPerRun: 20,
		Cooldown:         24 * time.Hour,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.Label == "" {
		return fmt.Errorf("label is required")
	}
	if c.Limit <= 0 {
		return fmt.Errorf("limit must be positive (got %d)", c.Limit)
	}
	if c.MaxReportsPerRun < 0 {
		return fmt.Errorf("max_reports_per_run cannot be negative (got %d)", c.MaxReportsPerRun)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("cooldown cannot be negative (got %v)", c.Cooldown)
	}
	return nil
}

func (c Config) certification() map[string]bool {
	m := make(map[string]bool, len(c.CertificationChannels))
	for _, ch := range c.CertificationChannels {
		m[ch] = true
	}
	return m
}
