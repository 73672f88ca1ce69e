package config

import "errors"

// ScheduleConfig describes one recurring scrape.
type ScheduleConfig struct {
	// Client is the site client to run.
	Client string `yaml:"client" mapstructure:"client"`
	// Cron is a standard 5-field cron expression.
	Cron string `yaml:"cron" mapstructure:"cron"`
	// SeedURL overrides the client's default seed when set.
	SeedURL string `yaml:"seed_url" mapstructure:"seed_url"`
	// MaxPages caps pages per category for scheduled runs. 0 uses the default.
	MaxPages int `yaml:"max_pages" mapstructure:"max_pages"`
	// Categories restricts the run to specific category URLs.
	Categories []string `yaml:"categories" mapstructure:"categories"`
}

// Validate checks schedule settings.
func (c *ScheduleConfig) Validate() error {
	if c.Client == "" {
		return errors.New("client is required")
	}
	if c.Cron == "" {
		return errors.New("cron expression is required")
	}
	return nil
}
